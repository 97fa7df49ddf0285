package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dental-clinic-backend/internal/ports/auth"
	"dental-clinic-backend/internal/ports/credentials"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	people   map[string]Person
	profiles map[string]Profile

	failCreate bool
}

func newTestRepo() *testRepo {
	return &testRepo{
		people:   map[string]Person{},
		profiles: map[string]Profile{},
	}
}

func (r *testRepo) CreateWithProfile(ctx context.Context, p Person, prof Profile) error {
	if r.failCreate {
		return errors.New("repo: boom")
	}
	for _, existing := range r.people {
		if strings.EqualFold(existing.Email, p.Email) {
			return ErrDuplicateEmail
		}
	}
	for _, other := range r.profiles {
		if prof.Paciente != nil && other.Paciente != nil &&
			other.Paciente.CarnetIdentidad == prof.Paciente.CarnetIdentidad {
			return ErrDuplicateNationalID
		}
	}
	r.people[p.ID] = p
	r.profiles[p.ID] = prof
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Person, error) {
	p, ok := r.people[id]
	if !ok {
		return Person{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) GetByEmail(ctx context.Context, email string) (Person, error) {
	for _, p := range r.people {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return Person{}, ErrNotFound
}

func (r *testRepo) GetProfile(ctx context.Context, personID string) (Profile, error) {
	if _, ok := r.people[personID]; !ok {
		return Profile{}, ErrNotFound
	}
	return r.profiles[personID], nil
}

func (r *testRepo) SwapRole(ctx context.Context, personID string, newRole Role, prof Profile) (Person, error) {
	p, ok := r.people[personID]
	if !ok {
		return Person{}, ErrNotFound
	}
	p.Role = newRole
	r.people[personID] = p
	r.profiles[personID] = prof
	return p, nil
}

func (r *testRepo) CountByRole(ctx context.Context, role Role) (int, error) {
	n := 0
	for _, p := range r.people {
		if p.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *testRepo) UpdateNotificationSettings(ctx context.Context, personID string, s NotificationSettings) (Person, error) {
	p, ok := r.people[personID]
	if !ok {
		return Person{}, ErrNotFound
	}
	p.RecibirNotificaciones = s.RecibirNotificaciones
	p.RecibirEmail = s.RecibirEmail
	p.RecibirPush = s.RecibirPush
	r.people[personID] = p
	return p, nil
}

// -------------------------
// Test credentials store
// -------------------------

type testCreds struct {
	emails  map[string]bool
	deleted []string
}

func newTestCreds() *testCreds {
	return &testCreds{emails: map[string]bool{}}
}

func (c *testCreds) Create(ctx context.Context, email, password string) error {
	if c.emails[email] {
		return credentials.ErrDuplicateEmail
	}
	c.emails[email] = true
	return nil
}

func (c *testCreds) Delete(ctx context.Context, email string) error {
	if !c.emails[email] {
		return credentials.ErrNotFound
	}
	delete(c.emails, email)
	c.deleted = append(c.deleted, email)
	return nil
}

func (c *testCreds) Exists(ctx context.Context, email string) (bool, error) {
	return c.emails[email], nil
}

func fechaNac(y, m, d int) *time.Time {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

func patientInput(email string) RegisterInput {
	return RegisterInput{
		Email:           email,
		Password:        "secreto123",
		Sexo:            "F",
		Direccion:       "Av. Siempre Viva 123",
		FechaNacimiento: fechaNac(1990, 5, 20),
		CarnetIdentidad: "1234567",
	}
}

// -------------------------
// Tests
// -------------------------

func TestService_Register_Paciente_OK(t *testing.T) {
	repo := newTestRepo()
	creds := newTestCreds()
	svc := NewService(repo, creds, nil)

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p, prof, err := svc.Register(context.Background(), patientInput("Ana@Example.com"))
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if p.Email != "ana@example.com" {
		t.Fatalf("expected email normalizado, got %s", p.Email)
	}
	if p.Role != RolePaciente {
		t.Fatalf("expected rol paciente por defecto, got %s", p.Role)
	}
	if p.Nombre != "ana" {
		t.Fatalf("expected nombre derivado del email, got %q", p.Nombre)
	}
	if !p.RecibirNotificaciones || !p.RecibirEmail || !p.RecibirPush {
		t.Fatalf("expected toggles de notificación activos por defecto")
	}
	if prof.Kind != ProfilePaciente || prof.Paciente == nil {
		t.Fatalf("expected perfil paciente, got %#v", prof)
	}
	if prof.Paciente.PersonID != p.ID {
		t.Fatalf("perfil no apunta a la persona")
	}
	if !creds.emails["ana@example.com"] {
		t.Fatalf("expected credencial creada")
	}
}

func TestService_Register_Paciente_MissingFields(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "ana@example.com",
		Password: "secreto123",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrMissingProfileFields) {
		t.Fatalf("expected ErrMissingProfileFields, got %v", err)
	}

	var mf *MissingFieldsError
	if !errors.As(err, &mf) {
		t.Fatalf("expected MissingFieldsError, got %T", err)
	}
	want := []string{"carnetidentidad", "direccion", "fechanacimiento", "sexo"}
	if len(mf.Fields) != len(want) {
		t.Fatalf("expected %v, got %v", want, mf.Fields)
	}
	for i := range want {
		if mf.Fields[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, mf.Fields)
		}
	}
}

func TestService_Register_FechaNacimientoFutura(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	in := patientInput("ana@example.com")
	in.FechaNacimiento = fechaNac(2030, 1, 1)

	_, _, err := svc.Register(context.Background(), in)
	if !errors.Is(err, ErrInvalidBirthDate) {
		t.Fatalf("expected ErrInvalidBirthDate, got %v", err)
	}
}

func TestService_Register_EmailDuplicado(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	if _, _, err := svc.Register(context.Background(), patientInput("ana@example.com")); err != nil {
		t.Fatalf("Register #1 error: %v", err)
	}

	in := patientInput("ANA@example.com")
	in.CarnetIdentidad = "7654321"
	_, _, err := svc.Register(context.Background(), in)
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_Register_CarnetDuplicado(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	if _, _, err := svc.Register(context.Background(), patientInput("ana@example.com")); err != nil {
		t.Fatalf("Register #1 error: %v", err)
	}

	_, _, err := svc.Register(context.Background(), patientInput("otra@example.com"))
	if !errors.Is(err, ErrDuplicateNationalID) {
		t.Fatalf("expected ErrDuplicateNationalID, got %v", err)
	}
}

func TestService_Register_RollbackDeCredencial(t *testing.T) {
	repo := newTestRepo()
	repo.failCreate = true
	creds := newTestCreds()
	svc := NewService(repo, creds, nil)

	_, _, err := svc.Register(context.Background(), patientInput("ana@example.com"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if creds.emails["ana@example.com"] {
		t.Fatalf("expected credencial eliminada tras rollback")
	}
	if len(creds.deleted) != 1 || creds.deleted[0] != "ana@example.com" {
		t.Fatalf("expected delete compensatorio, got %v", creds.deleted)
	}
}

func TestService_Register_AdminSinPerfil(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, newTestCreds(), nil)

	p, prof, err := svc.Register(context.Background(), RegisterInput{
		Email:    "root@example.com",
		Password: "secreto123",
		Role:     RoleAdministrador,
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if prof.Kind != ProfileNone {
		t.Fatalf("expected admin sin perfil, got %s", prof.Kind)
	}
	if p.Role != RoleAdministrador {
		t.Fatalf("expected rol administrador, got %s", p.Role)
	}
}

func registerAs(t *testing.T, svc *Service, email string, role Role) Person {
	t.Helper()
	in := patientInput(email)
	in.Role = role
	if role != RolePaciente {
		in = RegisterInput{Email: email, Password: "secreto123", Role: role}
	}
	p, _, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register %s error: %v", email, err)
	}
	return p
}

func TestService_ChangeRole_SoloAdmin(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	paciente := registerAs(t, svc, "ana@example.com", RolePaciente)

	_, err := svc.ChangeRole(context.Background(), paciente.ID, RoleOdontologo, auth.Claims{
		Email: "ana@example.com",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_ChangeRole_SincronizaPerfil(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, newTestCreds(), nil)

	registerAs(t, svc, "admin@example.com", RoleAdministrador)
	paciente := registerAs(t, svc, "ana@example.com", RolePaciente)

	updated, err := svc.ChangeRole(context.Background(), paciente.ID, RoleOdontologo, auth.Claims{
		Email: "admin@example.com",
	})
	if err != nil {
		t.Fatalf("ChangeRole error: %v", err)
	}
	if updated.Role != RoleOdontologo {
		t.Fatalf("expected rol odontologo, got %s", updated.Role)
	}

	prof, err := svc.GetProfile(context.Background(), paciente.ID)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if prof.Kind != ProfileOdontologo || prof.Odontologo == nil {
		t.Fatalf("expected perfil odontologo vacío, got %#v", prof)
	}
	if prof.Paciente != nil {
		t.Fatalf("perfil paciente anterior no fue eliminado")
	}
}

func TestService_ChangeRole_MismoRolEsNoOp(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	registerAs(t, svc, "admin@example.com", RoleAdministrador)
	paciente := registerAs(t, svc, "ana@example.com", RolePaciente)

	p, err := svc.ChangeRole(context.Background(), paciente.ID, RolePaciente, auth.Claims{
		Email: "admin@example.com",
	})
	if err != nil {
		t.Fatalf("ChangeRole error: %v", err)
	}
	if p.Role != RolePaciente {
		t.Fatalf("expected rol sin cambios, got %s", p.Role)
	}
}

func TestService_ChangeRole_UltimoAdministrador(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	admin := registerAs(t, svc, "admin@example.com", RoleAdministrador)

	_, err := svc.ChangeRole(context.Background(), admin.ID, RolePaciente, auth.Claims{
		Email: "admin@example.com",
	})
	if !errors.Is(err, ErrLastAdministrator) {
		t.Fatalf("expected ErrLastAdministrator, got %v", err)
	}

	// Con un segundo admin sí se puede degradar al primero.
	registerAs(t, svc, "admin2@example.com", RoleAdministrador)
	updated, err := svc.ChangeRole(context.Background(), admin.ID, RolePaciente, auth.Claims{
		Email: "admin2@example.com",
	})
	if err != nil {
		t.Fatalf("ChangeRole error: %v", err)
	}
	if updated.Role != RolePaciente {
		t.Fatalf("expected rol paciente, got %s", updated.Role)
	}
}

func TestService_IsAdministrator_Staff(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	if !svc.IsAdministrator(context.Background(), auth.Claims{IsStaff: true}) {
		t.Fatalf("expected staff como administrador")
	}
	if svc.IsAdministrator(context.Background(), auth.Claims{Email: "nadie@example.com"}) {
		t.Fatalf("expected no-admin para principal desconocido")
	}
}

func TestService_HasRole(t *testing.T) {
	svc := NewService(newTestRepo(), newTestCreds(), nil)

	p := registerAs(t, svc, "ana@example.com", RolePaciente)

	ok, err := svc.HasRole(context.Background(), p.ID, "paciente")
	if err != nil || !ok {
		t.Fatalf("expected paciente, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.HasRole(context.Background(), p.ID, "odontologo")
	if err != nil || ok {
		t.Fatalf("expected no odontologo, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.HasRole(context.Background(), "no-existe", "paciente")
	if err != nil || ok {
		t.Fatalf("expected false sin error para persona inexistente, got ok=%v err=%v", ok, err)
	}
}
