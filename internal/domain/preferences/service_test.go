package preferences

import (
	"context"
	"testing"
	"time"
)

// -------------------------
// Test repos (in-memory)
// -------------------------

type testRepo struct {
	prefs    map[string]Preference
	types    map[string]TypeEntry
	channels map[Channel]ChannelEntry
}

func newPrefsRepo() *testRepo {
	return &testRepo{
		prefs:    map[string]Preference{},
		types:    map[string]TypeEntry{},
		channels: map[Channel]ChannelEntry{},
	}
}

func key(personID, tipo string, canal Channel) string {
	return personID + "|" + tipo + "|" + string(canal)
}

func (r *testRepo) GetPreference(ctx context.Context, personID, tipo string, canal Channel) (Preference, error) {
	p, ok := r.prefs[key(personID, tipo, canal)]
	if !ok {
		return Preference{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) UpsertPreference(ctx context.Context, p Preference) error {
	r.prefs[key(p.PersonID, p.Tipo, p.Canal)] = p
	return nil
}

func (r *testRepo) ListPreferences(ctx context.Context, personID string) ([]Preference, error) {
	out := make([]Preference, 0)
	for _, p := range r.prefs {
		if p.PersonID == personID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *testRepo) GetType(ctx context.Context, nombre string) (TypeEntry, error) {
	t, ok := r.types[nombre]
	if !ok {
		return TypeEntry{}, ErrNotFound
	}
	return t, nil
}

func (r *testRepo) GetChannel(ctx context.Context, nombre Channel) (ChannelEntry, error) {
	c, ok := r.channels[nombre]
	if !ok {
		return ChannelEntry{}, ErrNotFound
	}
	return c, nil
}

type testDevices struct {
	byID map[string]MobileDevice
}

func newTestDevices() *testDevices {
	return &testDevices{byID: map[string]MobileDevice{}}
}

func (d *testDevices) GetByToken(ctx context.Context, token string) (MobileDevice, error) {
	for _, dev := range d.byID {
		if dev.Token == token {
			return dev, nil
		}
	}
	return MobileDevice{}, ErrNotFound
}

func (d *testDevices) GetActiveByPerson(ctx context.Context, personID string) (MobileDevice, error) {
	var best MobileDevice
	found := false
	for _, dev := range d.byID {
		if dev.PersonID != personID || !dev.Activo {
			continue
		}
		if !found || dev.UltimaActividad.After(best.UltimaActividad) {
			best = dev
			found = true
		}
	}
	if !found {
		return MobileDevice{}, ErrNotFound
	}
	return best, nil
}

func (d *testDevices) ListByPerson(ctx context.Context, personID string) ([]MobileDevice, error) {
	out := make([]MobileDevice, 0)
	for _, dev := range d.byID {
		if dev.PersonID == personID {
			out = append(out, dev)
		}
	}
	return out, nil
}

func (d *testDevices) Save(ctx context.Context, dev MobileDevice) error {
	for id, other := range d.byID {
		if id != dev.ID && other.Token == dev.Token {
			other.Token = ""
			other.Activo = false
			d.byID[id] = other
		}
	}
	d.byID[dev.ID] = dev
	return nil
}

func (d *testDevices) DeactivateOthers(ctx context.Context, personID, keepID string) error {
	for id, dev := range d.byID {
		if dev.PersonID == personID && id != keepID {
			dev.Activo = false
			d.byID[id] = dev
		}
	}
	return nil
}

// Directorio con toggles configurables por persona.
type testDirectory struct {
	toggles map[string][3]bool // notificaciones, email, push
}

func (d *testDirectory) NotificationToggles(ctx context.Context, personID string) (bool, bool, bool, error) {
	t, ok := d.toggles[personID]
	if !ok {
		return false, false, false, ErrNotFound
	}
	return t[0], t[1], t[2], nil
}

func allOn(personID string) *testDirectory {
	return &testDirectory{toggles: map[string][3]bool{personID: {true, true, true}}}
}

// -------------------------
// Tests
// -------------------------

func TestService_ShouldSend_DefaultOptOut(t *testing.T) {
	svc := NewService(newPrefsRepo(), newTestDevices(), allOn("p1"), nil)

	ok, err := svc.ShouldSend(context.Background(), "p1", TipoConfirmacionCita, ChannelEmail)
	if err != nil {
		t.Fatalf("ShouldSend error: %v", err)
	}
	if !ok {
		t.Fatalf("expected envío permitido sin fila explícita")
	}
}

func TestService_ShouldSend_ToggleGeneralApagaTodo(t *testing.T) {
	repo := newPrefsRepo()
	dir := &testDirectory{toggles: map[string][3]bool{"p1": {false, true, true}}}
	svc := NewService(repo, newTestDevices(), dir, nil)

	// Aun con fila explícita activa, el toggle general manda.
	if _, err := svc.SetPreference(context.Background(), "p1", TipoConfirmacionCita, ChannelEmail, true); err != nil {
		t.Fatalf("SetPreference error: %v", err)
	}

	for _, canal := range []Channel{ChannelEmail, ChannelPush, ChannelSMS, ChannelWhatsapp} {
		ok, err := svc.ShouldSend(context.Background(), "p1", TipoConfirmacionCita, canal)
		if err != nil {
			t.Fatalf("ShouldSend(%s) error: %v", canal, err)
		}
		if ok {
			t.Fatalf("expected canal %s bloqueado por toggle general", canal)
		}
	}
}

func TestService_ShouldSend_ToggleDeCanal(t *testing.T) {
	dir := &testDirectory{toggles: map[string][3]bool{"p1": {true, false, true}}}
	svc := NewService(newPrefsRepo(), newTestDevices(), dir, nil)

	ok, err := svc.ShouldSend(context.Background(), "p1", TipoConfirmacionCita, ChannelEmail)
	if err != nil || ok {
		t.Fatalf("expected email bloqueado, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.ShouldSend(context.Background(), "p1", TipoConfirmacionCita, ChannelPush)
	if err != nil || !ok {
		t.Fatalf("expected push permitido, got ok=%v err=%v", ok, err)
	}
	// SMS no tiene toggle grueso propio: pasa con el general activo.
	ok, err = svc.ShouldSend(context.Background(), "p1", TipoConfirmacionCita, ChannelSMS)
	if err != nil || !ok {
		t.Fatalf("expected sms permitido, got ok=%v err=%v", ok, err)
	}
}

func TestService_ShouldSend_FilaExplicitaManda(t *testing.T) {
	repo := newPrefsRepo()
	svc := NewService(repo, newTestDevices(), allOn("p1"), nil)

	if _, err := svc.SetPreference(context.Background(), "p1", TipoRecordatorioCita, ChannelEmail, false); err != nil {
		t.Fatalf("SetPreference error: %v", err)
	}

	ok, err := svc.ShouldSend(context.Background(), "p1", TipoRecordatorioCita, ChannelEmail)
	if err != nil || ok {
		t.Fatalf("expected bloqueado por fila explícita, got ok=%v err=%v", ok, err)
	}

	// Reactivar la fila vuelve a permitir.
	if _, err := svc.SetPreference(context.Background(), "p1", TipoRecordatorioCita, ChannelEmail, true); err != nil {
		t.Fatalf("SetPreference error: %v", err)
	}
	ok, err = svc.ShouldSend(context.Background(), "p1", TipoRecordatorioCita, ChannelEmail)
	if err != nil || !ok {
		t.Fatalf("expected permitido tras reactivar, got ok=%v err=%v", ok, err)
	}
}

func TestService_ShouldSend_CatalogoInactivoBloquea(t *testing.T) {
	repo := newPrefsRepo()
	repo.types[TipoRecordatorioCita] = TypeEntry{Nombre: TipoRecordatorioCita, Activo: false}
	repo.channels[ChannelSMS] = ChannelEntry{Nombre: ChannelSMS, Activo: false}
	svc := NewService(repo, newTestDevices(), allOn("p1"), nil)

	ok, err := svc.ShouldSend(context.Background(), "p1", TipoRecordatorioCita, ChannelEmail)
	if err != nil || ok {
		t.Fatalf("expected tipo inactivo bloqueado, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.ShouldSend(context.Background(), "p1", TipoConfirmacionCita, ChannelSMS)
	if err != nil || ok {
		t.Fatalf("expected canal inactivo bloqueado, got ok=%v err=%v", ok, err)
	}

	// La fila explícita activa le gana al catálogo inactivo.
	if _, err := svc.SetPreference(context.Background(), "p1", TipoRecordatorioCita, ChannelEmail, true); err != nil {
		t.Fatalf("SetPreference error: %v", err)
	}
	ok, err = svc.ShouldSend(context.Background(), "p1", TipoRecordatorioCita, ChannelEmail)
	if err != nil || !ok {
		t.Fatalf("expected fila explícita por encima del catálogo, got ok=%v err=%v", ok, err)
	}
}

func TestService_SetPreference_UpsertConservaIdentidad(t *testing.T) {
	svc := NewService(newPrefsRepo(), newTestDevices(), allOn("p1"), nil)

	now1 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now1 }
	p1, err := svc.SetPreference(context.Background(), "p1", TipoConfirmacionCita, ChannelEmail, false)
	if err != nil {
		t.Fatalf("SetPreference #1 error: %v", err)
	}

	now2 := now1.Add(time.Hour)
	svc.now = func() time.Time { return now2 }
	p2, err := svc.SetPreference(context.Background(), "p1", TipoConfirmacionCita, ChannelEmail, true)
	if err != nil {
		t.Fatalf("SetPreference #2 error: %v", err)
	}

	if p2.ID != p1.ID {
		t.Fatalf("expected misma fila (upsert), got %s vs %s", p1.ID, p2.ID)
	}
	if !p2.Activo || p2.UpdatedAt != now2 || p2.CreatedAt != now1 {
		t.Fatalf("expected flag y timestamps actualizados, got %#v", p2)
	}
}

func TestService_RegisterDevice_CreaYReemplaza(t *testing.T) {
	devices := newTestDevices()
	svc := NewService(newPrefsRepo(), devices, allOn("p1"), nil)

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	d1, created, err := svc.RegisterDevice(context.Background(), RegisterDeviceInput{
		PersonID: "p1", Token: "tok-a", Plataforma: "Android", Modelo: "Pixel 7",
	})
	if err != nil {
		t.Fatalf("RegisterDevice #1 error: %v", err)
	}
	if !created {
		t.Fatalf("expected dispositivo nuevo")
	}
	if d1.Plataforma != "android" || !d1.Activo {
		t.Fatalf("expected plataforma normalizada y activo, got %#v", d1)
	}

	// Mismo usuario con token nuevo: recicla la fila, no crea otra.
	d2, created, err := svc.RegisterDevice(context.Background(), RegisterDeviceInput{
		PersonID: "p1", Token: "tok-b",
	})
	if err != nil {
		t.Fatalf("RegisterDevice #2 error: %v", err)
	}
	if created {
		t.Fatalf("expected fila reciclada")
	}
	if d2.ID != d1.ID || d2.Token != "tok-b" {
		t.Fatalf("expected mismo ID con token nuevo, got %#v", d2)
	}
	if d2.Modelo != "Pixel 7" {
		t.Fatalf("expected modelo conservado al no venir uno nuevo, got %q", d2.Modelo)
	}
}

func TestService_RegisterDevice_TokenReasignadoEntrePersonas(t *testing.T) {
	devices := newTestDevices()
	dir := &testDirectory{toggles: map[string][3]bool{
		"p1": {true, true, true},
		"p2": {true, true, true},
	}}
	svc := NewService(newPrefsRepo(), devices, dir, nil)

	d1, _, err := svc.RegisterDevice(context.Background(), RegisterDeviceInput{
		PersonID: "p1", Token: "tok-compartido",
	})
	if err != nil {
		t.Fatalf("RegisterDevice p1 error: %v", err)
	}

	// p2 registra el mismo token: el dispositivo cambia de dueño.
	d2, created, err := svc.RegisterDevice(context.Background(), RegisterDeviceInput{
		PersonID: "p2", Token: "tok-compartido",
	})
	if err != nil {
		t.Fatalf("RegisterDevice p2 error: %v", err)
	}
	if created {
		t.Fatalf("expected reasignación, no alta")
	}
	if d2.ID != d1.ID || d2.PersonID != "p2" {
		t.Fatalf("expected mismo dispositivo con dueño nuevo, got %#v", d2)
	}

	// p1 ya no tiene dispositivo activo.
	if _, _, err := svc.ActiveDevice(context.Background(), "p1"); err == nil {
		t.Fatalf("expected p1 sin dispositivo activo")
	}
	id, tok, err := svc.ActiveDevice(context.Background(), "p2")
	if err != nil || id != d2.ID || tok != "tok-compartido" {
		t.Fatalf("expected dispositivo activo de p2, got id=%s tok=%s err=%v", id, tok, err)
	}
}

func TestService_RegisterDevice_UnSoloActivoPorPersona(t *testing.T) {
	devices := newTestDevices()
	svc := NewService(newPrefsRepo(), devices, allOn("p1"), nil)

	// Dos filas preexistentes activas (estado anómalo heredado).
	devices.byID["d-1"] = MobileDevice{ID: "d-1", PersonID: "p1", Token: "tok-x", Activo: true}
	devices.byID["d-2"] = MobileDevice{ID: "d-2", PersonID: "p1", Token: "tok-y", Activo: true}

	d, _, err := svc.RegisterDevice(context.Background(), RegisterDeviceInput{
		PersonID: "p1", Token: "tok-x",
	})
	if err != nil {
		t.Fatalf("RegisterDevice error: %v", err)
	}

	activos := 0
	for _, dev := range devices.byID {
		if dev.PersonID == "p1" && dev.Activo {
			activos++
			if dev.ID != d.ID {
				t.Fatalf("expected único activo %s, got %s", d.ID, dev.ID)
			}
		}
	}
	if activos != 1 {
		t.Fatalf("expected exactamente un dispositivo activo, got %d", activos)
	}
}
