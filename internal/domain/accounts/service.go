package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dental-clinic-backend/internal/platform/logger"
	"dental-clinic-backend/internal/ports/auth"
	"dental-clinic-backend/internal/ports/credentials"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrDuplicateNationalID  = errors.New("carnet de identidad already registered")
	ErrDuplicateLicense     = errors.New("nro de matrícula already registered")
	ErrInvalidBirthDate     = errors.New("fecha de nacimiento must not be in the future")
	ErrLastAdministrator    = errors.New("cannot remove the last administrator")
	ErrMissingProfileFields = errors.New("missing required profile fields")
)

// MissingFieldsError detalla qué campos obligatorios del perfil faltan.
// errors.Is(err, ErrMissingProfileFields) devuelve true.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required profile fields: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingProfileFields
}

type Service struct {
	repo  Repository
	creds credentials.Store
	log   logger.Logger
	now   func() time.Time
}

func NewService(repo Repository, creds credentials.Store, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:  repo,
		creds: creds,
		log:   log,
		now:   time.Now,
	}
}

type RegisterInput struct {
	Email    string
	Password string

	Nombre   string
	Apellido string
	Telefono string
	Sexo     string

	Role Role // vacío => paciente

	// Campos de perfil paciente.
	CarnetIdentidad string
	FechaNacimiento *time.Time
	Direccion       string

	// Campos de perfil odontólogo.
	Especialidad string
	NroMatricula string
}

// Register crea la credencial, la Person y el perfil subtipo como una unidad.
// Si la persistencia del dominio falla después de crear la credencial, la
// credencial se elimina (compensación) para no dejar un alta a medias.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Person, Profile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return Person{}, Profile{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Password) == "" {
		return Person{}, Profile{}, ErrInvalidInput
	}

	role := in.Role
	if role == "" {
		role = RolePaciente
	}
	if !role.Valid() {
		return Person{}, Profile{}, ErrInvalidInput
	}

	if role == RolePaciente {
		if missing := missingPatientFields(in); len(missing) > 0 {
			return Person{}, Profile{}, &MissingFieldsError{Fields: missing}
		}
	}
	if in.FechaNacimiento != nil && in.FechaNacimiento.After(s.now()) {
		return Person{}, Profile{}, ErrInvalidBirthDate
	}

	// Pre-chequeo de email en credenciales y en el dominio. La carrera que
	// quede la cierra la constraint de unicidad del adapter.
	if exists, err := s.creds.Exists(ctx, email); err != nil {
		return Person{}, Profile{}, err
	} else if exists {
		return Person{}, Profile{}, ErrDuplicateEmail
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return Person{}, Profile{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return Person{}, Profile{}, err
	}

	if err := s.creds.Create(ctx, email, in.Password); err != nil {
		if errors.Is(err, credentials.ErrDuplicateEmail) {
			return Person{}, Profile{}, ErrDuplicateEmail
		}
		return Person{}, Profile{}, err
	}

	now := s.now()
	nombre := strings.TrimSpace(in.Nombre)
	if nombre == "" {
		// Default: parte local del email.
		nombre = strings.SplitN(email, "@", 2)[0]
	}

	p := Person{
		ID:                    uuid.NewString(),
		Nombre:                nombre,
		Apellido:              strings.TrimSpace(in.Apellido),
		Email:                 email,
		Telefono:              strings.TrimSpace(in.Telefono),
		Sexo:                  strings.TrimSpace(in.Sexo),
		Role:                  role,
		RecibirNotificaciones: true,
		RecibirEmail:          true,
		RecibirPush:           true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	prof := buildProfile(p.ID, role, in)

	if err := s.repo.CreateWithProfile(ctx, p, prof); err != nil {
		// Compensación: la credencial no debe quedar sin Person.
		if derr := s.creds.Delete(ctx, email); derr != nil {
			s.log.Error("rollback de credencial falló", map[string]any{
				"email": email, "error": derr.Error(),
			})
		}
		return Person{}, Profile{}, err
	}

	s.log.Info("usuario registrado", map[string]any{
		"person_id": p.ID, "rol": string(role),
	})
	return p, prof, nil
}

func missingPatientFields(in RegisterInput) []string {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(in.Sexo) == "" {
		missing = append(missing, "sexo")
	}
	if strings.TrimSpace(in.Direccion) == "" {
		missing = append(missing, "direccion")
	}
	if in.FechaNacimiento == nil {
		missing = append(missing, "fechanacimiento")
	}
	if strings.TrimSpace(in.CarnetIdentidad) == "" {
		missing = append(missing, "carnetidentidad")
	}
	sort.Strings(missing)
	return missing
}

func buildProfile(personID string, role Role, in RegisterInput) Profile {
	switch role {
	case RolePaciente:
		return Profile{
			Kind: ProfilePaciente,
			Paciente: &PatientProfile{
				PersonID:        personID,
				CarnetIdentidad: strings.ToUpper(strings.TrimSpace(in.CarnetIdentidad)),
				FechaNacimiento: in.FechaNacimiento,
				Direccion:       strings.TrimSpace(in.Direccion),
			},
		}
	case RoleOdontologo:
		return Profile{
			Kind: ProfileOdontologo,
			Odontologo: &DentistProfile{
				PersonID:     personID,
				Especialidad: strings.TrimSpace(in.Especialidad),
				NroMatricula: strings.TrimSpace(in.NroMatricula),
			},
		}
	case RoleRecepcionista:
		return Profile{
			Kind:          ProfileRecepcionista,
			Recepcionista: &ReceptionistProfile{PersonID: personID},
		}
	default:
		return Profile{Kind: ProfileNone}
	}
}

// emptyProfileFor arma el perfil vacío que corresponde a un rol nuevo
// tras un cambio de rol.
func emptyProfileFor(personID string, role Role) Profile {
	return buildProfile(personID, role, RegisterInput{})
}

// ChangeRole cambia el rol de una Person y sincroniza su perfil subtipo:
// borra el anterior y crea el nuevo con campos vacíos, en una transacción.
func (s *Service) ChangeRole(ctx context.Context, personID string, newRole Role, requestedBy auth.Claims) (Person, error) {
	if !newRole.Valid() {
		return Person{}, ErrInvalidInput
	}

	if !s.IsAdministrator(ctx, requestedBy) {
		return Person{}, ErrForbidden
	}

	p, err := s.repo.GetByID(ctx, personID)
	if err != nil {
		return Person{}, err
	}

	if p.Role == newRole {
		return p, nil
	}

	if p.Role == RoleAdministrador && newRole != RoleAdministrador {
		n, err := s.repo.CountByRole(ctx, RoleAdministrador)
		if err != nil {
			return Person{}, err
		}
		if n <= 1 {
			return Person{}, ErrLastAdministrator
		}
	}

	updated, err := s.repo.SwapRole(ctx, personID, newRole, emptyProfileFor(personID, newRole))
	if err != nil {
		return Person{}, err
	}

	s.log.Info("cambio de rol", map[string]any{
		"person_id":    personID,
		"rol_anterior": string(p.Role),
		"rol_nuevo":    string(newRole),
	})
	return updated, nil
}

// ResolveByPrincipal busca la Person de dominio del principal autenticado
// por email (case-insensitive). El username del principal hace de fallback.
func (s *Service) ResolveByPrincipal(ctx context.Context, claims auth.Claims) (Person, error) {
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(claims.UserID))
	}
	if email == "" {
		return Person{}, ErrNotFound
	}
	return s.repo.GetByEmail(ctx, email)
}

// IsAdministrator: staff de plataforma o Person con rol administrador.
func (s *Service) IsAdministrator(ctx context.Context, claims auth.Claims) bool {
	if claims.IsStaff {
		return true
	}
	p, err := s.ResolveByPrincipal(ctx, claims)
	if err != nil {
		return false
	}
	return p.Role == RoleAdministrador
}

func (s *Service) GetByID(ctx context.Context, id string) (Person, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Person{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetProfile(ctx context.Context, personID string) (Profile, error) {
	return s.repo.GetProfile(ctx, personID)
}

func (s *Service) UpdateNotificationSettings(ctx context.Context, personID string, settings NotificationSettings) (Person, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return Person{}, ErrInvalidInput
	}
	return s.repo.UpdateNotificationSettings(ctx, personID, settings)
}

// NotificationToggles expone los toggles gruesos para el resolver de
// preferencias sin acoplarlo a este paquete.
func (s *Service) NotificationToggles(ctx context.Context, personID string) (notificaciones, email, push bool, err error) {
	p, err := s.repo.GetByID(ctx, personID)
	if err != nil {
		return false, false, false, err
	}
	return p.RecibirNotificaciones, p.RecibirEmail, p.RecibirPush, nil
}

// HasRole responde si la Person existe con el rol dado.
func (s *Service) HasRole(ctx context.Context, personID, role string) (bool, error) {
	p, err := s.repo.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return string(p.Role) == role, nil
}

// EmailOf resuelve la dirección de email de una Person (canal email).
func (s *Service) EmailOf(ctx context.Context, personID string) (string, error) {
	p, err := s.repo.GetByID(ctx, personID)
	if err != nil {
		return "", err
	}
	return p.Email, nil
}

// PersonIDByEmail es el lookup que usa el middleware de bitácora para
// atribuir el actor.
func (s *Service) PersonIDByEmail(ctx context.Context, email string) (string, error) {
	p, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
