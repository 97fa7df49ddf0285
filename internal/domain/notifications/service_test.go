package notifications

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"dental-clinic-backend/internal/ports/channel"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID map[string]Record
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Record{}}
}

func (r *testRepo) Create(ctx context.Context, rec Record) error {
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Record, error) {
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *testRepo) Update(ctx context.Context, rec Record) error {
	if _, ok := r.byID[rec.ID]; !ok {
		return ErrNotFound
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	out := make([]Record, 0)
	for _, rec := range r.byID {
		if rec.Estado == StatusPendiente && !rec.ScheduledAt.After(now) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *testRepo) ListByPerson(ctx context.Context, personID string, limit int) ([]Record, error) {
	out := make([]Record, 0)
	for _, rec := range r.byID {
		if rec.PersonID == personID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type testTemplates struct {
	byKey map[string]Template
}

func (t *testTemplates) Get(ctx context.Context, tipo, canal string) (Template, error) {
	tpl, ok := t.byKey[tipo+"|"+canal]
	if !ok {
		return Template{}, ErrNotFound
	}
	return tpl, nil
}

// testSender registra los envíos y puede fallar con un mensaje dado.
type testSender struct {
	sent [][]string
	fail error
}

func (s *testSender) Send(ctx context.Context, addresses []string, title, body string, metadata map[string]any) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, addresses)
	return nil
}

type testEmails struct{}

func (testEmails) EmailOf(ctx context.Context, personID string) (string, error) {
	if personID == "p1" {
		return "p1@example.com", nil
	}
	return "", errors.New("unknown person")
}

type testDevices struct{}

func (testDevices) ActiveDevice(ctx context.Context, personID string) (string, string, error) {
	if personID == "p1" {
		return "dev-1", "tok-1", nil
	}
	return "", "", errors.New("no active device")
}

func newTestService(repo *testRepo, sender channel.Sender) *Service {
	return NewService(repo, nil, map[string]channel.Sender{"email": sender}, testEmails{}, testDevices{}, nil)
}

func enqueue(t *testing.T, svc *Service, canal string) Record {
	t.Helper()
	rec, err := svc.Enqueue(context.Background(), EnqueueInput{
		PersonID: "p1",
		Tipo:     "confirmacion_cita",
		Canal:    canal,
		Titulo:   "Cita confirmada",
		Mensaje:  "Tu cita quedó confirmada.",
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	return rec
}

// -------------------------
// Tests
// -------------------------

func TestService_Enqueue_SiemprePendiente(t *testing.T) {
	repo := newTestRepo()
	sender := &testSender{}
	svc := newTestService(repo, sender)

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	rec := enqueue(t, svc, "email")
	if rec.Estado != StatusPendiente {
		t.Fatalf("expected estado pendiente, got %s", rec.Estado)
	}
	if !rec.ScheduledAt.Equal(now) {
		t.Fatalf("expected fecha de envío inmediata, got %v", rec.ScheduledAt)
	}
	// Encolar nunca envía en línea.
	if len(sender.sent) != 0 {
		t.Fatalf("expected cero envíos en Enqueue, got %d", len(sender.sent))
	}
}

func TestService_Enqueue_RenderDePlantilla(t *testing.T) {
	repo := newTestRepo()
	templates := &testTemplates{byKey: map[string]Template{
		"confirmacion_cita|email": {
			Tipo: "confirmacion_cita", Canal: "email",
			TituloTemplate:  "Cita confirmada",
			MensajeTemplate: "Hola {nombre}, tu cita es el {fecha}.",
			Activo:          true,
		},
	}}
	svc := NewService(repo, templates, map[string]channel.Sender{}, testEmails{}, testDevices{}, nil)

	rec, err := svc.Enqueue(context.Background(), EnqueueInput{
		PersonID: "p1",
		Tipo:     "confirmacion_cita",
		Canal:    "email",
		Datos:    map[string]any{"nombre": "Ana", "fecha": "2026-04-10"},
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if rec.Titulo != "Cita confirmada" {
		t.Fatalf("expected título de plantilla, got %q", rec.Titulo)
	}
	if rec.Mensaje != "Hola Ana, tu cita es el 2026-04-10." {
		t.Fatalf("expected mensaje renderizado, got %q", rec.Mensaje)
	}
}

func TestService_Enqueue_SinTituloNiPlantilla(t *testing.T) {
	svc := newTestService(newTestRepo(), &testSender{})

	_, err := svc.Enqueue(context.Background(), EnqueueInput{
		PersonID: "p1",
		Tipo:     "confirmacion_cita",
		Canal:    "email",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_DispatchOne_Exito(t *testing.T) {
	repo := newTestRepo()
	sender := &testSender{}
	svc := newTestService(repo, sender)

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	rec := enqueue(t, svc, "email")

	res, err := svc.DispatchOne(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("DispatchOne error: %v", err)
	}
	if !res.Sent || res.SentTo != 1 {
		t.Fatalf("expected envío a 1 dirección, got %#v", res)
	}
	if len(sender.sent) != 1 || sender.sent[0][0] != "p1@example.com" {
		t.Fatalf("expected envío al email del destinatario, got %v", sender.sent)
	}

	stored, _ := repo.GetByID(context.Background(), rec.ID)
	if stored.Estado != StatusEnviado {
		t.Fatalf("expected estado enviado, got %s", stored.Estado)
	}
	if stored.Intentos != 1 {
		t.Fatalf("expected un intento, got %d", stored.Intentos)
	}
	if stored.SentAt == nil || !stored.SentAt.Equal(now) {
		t.Fatalf("expected SentAt=%v, got %v", now, stored.SentAt)
	}

	// Ya no está pendiente: re-despachar falla limpio.
	if _, err := svc.DispatchOne(context.Background(), rec.ID); !errors.Is(err, ErrNotFoundOrNotPending) {
		t.Fatalf("expected ErrNotFoundOrNotPending, got %v", err)
	}
}

func TestService_DispatchOne_FalloDeCanal(t *testing.T) {
	repo := newTestRepo()
	longMsg := strings.Repeat("x", 2000)
	sender := &testSender{fail: errors.New(longMsg)}
	svc := newTestService(repo, sender)

	rec := enqueue(t, svc, "email")

	res, err := svc.DispatchOne(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("DispatchOne error: %v", err)
	}
	if res.Sent {
		t.Fatalf("expected envío fallido")
	}

	stored, _ := repo.GetByID(context.Background(), rec.ID)
	if stored.Estado != StatusError {
		t.Fatalf("expected estado error, got %s", stored.Estado)
	}
	if stored.Intentos != 1 {
		t.Fatalf("expected intento contado también en fallo, got %d", stored.Intentos)
	}
	if len(stored.ErrorMensaje) != 1000 {
		t.Fatalf("expected error truncado a 1000, got %d", len(stored.ErrorMensaje))
	}
}

func TestService_DispatchOne_ErrorConTildesNoParteRunas(t *testing.T) {
	repo := newTestRepo()
	// El byte 1000 cae a mitad de la primera "á": el corte debe retroceder.
	longMsg := strings.Repeat("x", 999) + strings.Repeat("á", 200)
	sender := &testSender{fail: errors.New(longMsg)}
	svc := newTestService(repo, sender)

	rec := enqueue(t, svc, "email")

	if _, err := svc.DispatchOne(context.Background(), rec.ID); err != nil {
		t.Fatalf("DispatchOne error: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), rec.ID)
	if !utf8.ValidString(stored.ErrorMensaje) {
		t.Fatalf("error almacenado con UTF-8 inválido: %q", stored.ErrorMensaje)
	}
	if len(stored.ErrorMensaje) != 999 {
		t.Fatalf("expected corte en el límite de runa (999 bytes), got %d", len(stored.ErrorMensaje))
	}
}

func TestService_DispatchOne_SinSenderConfigurado(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, nil, map[string]channel.Sender{}, testEmails{}, testDevices{}, nil)

	rec := enqueue(t, svc, "email")

	res, err := svc.DispatchOne(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("DispatchOne error: %v", err)
	}
	if res.Sent {
		t.Fatalf("expected fallo por canal sin sender")
	}

	stored, _ := repo.GetByID(context.Background(), rec.ID)
	if stored.Estado != StatusError {
		t.Fatalf("expected estado error, got %s", stored.Estado)
	}
}

func TestService_DispatchOne_TodaviaNoVence(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo, &testSender{})

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	future := now.Add(time.Hour)
	rec, err := svc.Enqueue(context.Background(), EnqueueInput{
		PersonID:    "p1",
		Tipo:        "recordatorio_cita",
		Canal:       "email",
		Titulo:      "Recordatorio",
		ScheduledAt: &future,
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	if _, err := svc.DispatchOne(context.Background(), rec.ID); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("expected ErrTooEarly, got %v", err)
	}

	// Sigue pendiente y sin intentos consumidos.
	stored, _ := repo.GetByID(context.Background(), rec.ID)
	if stored.Estado != StatusPendiente || stored.Intentos != 0 {
		t.Fatalf("expected pendiente sin intentos, got %#v", stored)
	}

	// Pasada la hora programada sí despacha.
	svc.now = func() time.Time { return future.Add(time.Minute) }
	res, err := svc.DispatchOne(context.Background(), rec.ID)
	if err != nil || !res.Sent {
		t.Fatalf("expected envío tras vencer, got res=%#v err=%v", res, err)
	}
}

func TestService_DispatchDue_FIFOYAislamiento(t *testing.T) {
	repo := newTestRepo()
	sender := &testSender{}
	svc := newTestService(repo, sender)

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	// Tres registros en orden de creación; el del medio es push sin sender.
	svc.now = func() time.Time { return base }
	first := enqueue(t, svc, "email")
	svc.now = func() time.Time { return base.Add(time.Second) }
	broken := enqueue(t, svc, "push")
	svc.now = func() time.Time { return base.Add(2 * time.Second) }
	last := enqueue(t, svc, "email")

	svc.now = func() time.Time { return base.Add(time.Minute) }
	summary, err := svc.DispatchDue(context.Background(), 0)
	if err != nil {
		t.Fatalf("DispatchDue error: %v", err)
	}

	if summary.Processed != 3 || summary.Sent != 2 || summary.Errors != 1 {
		t.Fatalf("expected 3/2/1, got %d/%d/%d", summary.Processed, summary.Sent, summary.Errors)
	}
	if summary.Items[0].RecordID != first.ID || summary.Items[2].RecordID != last.ID {
		t.Fatalf("expected orden FIFO por creación, got %#v", summary.Items)
	}
	// El fallo del registro intermedio no aborta el lote.
	if summary.Items[1].RecordID != broken.ID || summary.Items[1].Sent {
		t.Fatalf("expected fallo aislado en el registro push, got %#v", summary.Items[1])
	}
}

func TestService_DispatchDue_RespetaLimite(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo, &testSender{})

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		enqueue(t, svc, "email")
	}

	svc.now = func() time.Time { return base.Add(time.Minute) }
	summary, err := svc.DispatchDue(context.Background(), 2)
	if err != nil {
		t.Fatalf("DispatchDue error: %v", err)
	}
	if summary.Processed != 2 {
		t.Fatalf("expected 2 procesados, got %d", summary.Processed)
	}

	// Los restantes quedan para el próximo lote.
	summary, err = svc.DispatchDue(context.Background(), 0)
	if err != nil || summary.Processed != 3 {
		t.Fatalf("expected 3 restantes, got %d err=%v", summary.Processed, err)
	}
}

func TestService_DispatchPush_RegistraDispositivo(t *testing.T) {
	repo := newTestRepo()
	sender := &testSender{}
	svc := NewService(repo, nil, map[string]channel.Sender{"push": sender}, testEmails{}, testDevices{}, nil)

	rec := enqueue(t, svc, "push")

	res, err := svc.DispatchOne(context.Background(), rec.ID)
	if err != nil || !res.Sent {
		t.Fatalf("expected envío push, got res=%#v err=%v", res, err)
	}
	if len(sender.sent) != 1 || sender.sent[0][0] != "tok-1" {
		t.Fatalf("expected envío al token activo, got %v", sender.sent)
	}

	stored, _ := repo.GetByID(context.Background(), rec.ID)
	if stored.DeviceID == nil || *stored.DeviceID != "dev-1" {
		t.Fatalf("expected dispositivo registrado en la fila, got %v", stored.DeviceID)
	}
}

func TestService_MarkDeliveredYRead(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo, &testSender{})

	rec := enqueue(t, svc, "email")

	// Pendiente no puede confirmarse.
	if _, err := svc.MarkDelivered(context.Background(), rec.ID); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState sobre pendiente, got %v", err)
	}

	if _, err := svc.DispatchOne(context.Background(), rec.ID); err != nil {
		t.Fatalf("DispatchOne error: %v", err)
	}

	delivered, err := svc.MarkDelivered(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("MarkDelivered error: %v", err)
	}
	if delivered.Estado != StatusEntregado || delivered.DeliveredAt == nil {
		t.Fatalf("expected entregado con timestamp, got %#v", delivered)
	}

	read, err := svc.MarkRead(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}
	if read.Estado != StatusLeido || read.ReadAt == nil {
		t.Fatalf("expected leído con timestamp, got %#v", read)
	}

	// Leído es terminal para las confirmaciones.
	if _, err := svc.MarkDelivered(context.Background(), rec.ID); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState sobre leído, got %v", err)
	}
}

func TestService_MarkRead_DesdeEnviadoDirecto(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo, &testSender{})

	rec := enqueue(t, svc, "email")
	if _, err := svc.DispatchOne(context.Background(), rec.ID); err != nil {
		t.Fatalf("DispatchOne error: %v", err)
	}

	// leído puede llegar sin pasar por entregado.
	read, err := svc.MarkRead(context.Background(), rec.ID)
	if err != nil || read.Estado != StatusLeido {
		t.Fatalf("expected leído directo desde enviado, got %#v err=%v", read, err)
	}
}
