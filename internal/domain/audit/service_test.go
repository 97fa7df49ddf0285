package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	entries []Entry
	fail    bool
}

func (r *testRepo) Append(ctx context.Context, e Entry) error {
	if r.fail {
		return errors.New("repo: boom")
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *testRepo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	n := len(r.entries)
	if limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

func TestService_Record_AppendOnly(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo, nil)

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Record(context.Background(), RecordInput{
		Accion:      "crear_cita",
		Descripcion: "Nueva cita creada",
		ActorID:     "p1",
		IPAddress:   "10.0.0.1",
		Entidad:     "Consulta",
		EntidadID:   "c1",
	})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entrada, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" || !e.CreatedAt.Equal(now) {
		t.Fatalf("expected ID y timestamp asignados, got %#v", e)
	}
	if e.ActorID == nil || *e.ActorID != "p1" {
		t.Fatalf("expected actor p1, got %v", e.ActorID)
	}
}

func TestService_Record_SinActor(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo, nil)

	svc.Record(context.Background(), RecordInput{
		Accion: "registro",
	})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entrada, got %d", len(repo.entries))
	}
	if repo.entries[0].ActorID != nil {
		t.Fatalf("expected actor nil para evento pre-auth, got %v", repo.entries[0].ActorID)
	}
}

func TestService_Record_AccionVaciaEsNoOp(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo, nil)

	svc.Record(context.Background(), RecordInput{Descripcion: "sin acción"})

	if len(repo.entries) != 0 {
		t.Fatalf("expected ninguna entrada, got %d", len(repo.entries))
	}
}

func TestService_Record_FalloDeRepoNoEscala(t *testing.T) {
	repo := &testRepo{fail: true}
	svc := NewService(repo, nil)

	// No debe entrar en pánico ni devolver nada: el fallo solo se loguea.
	svc.Record(context.Background(), RecordInput{Accion: "registro"})
}

func TestService_ListRecent_NuevoPrimero(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo, nil)

	for _, accion := range []string{"a", "b", "c"} {
		svc.Record(context.Background(), RecordInput{Accion: accion})
	}

	out, err := svc.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if len(out) != 2 || out[0].Accion != "c" || out[1].Accion != "b" {
		t.Fatalf("expected [c b], got %#v", out)
	}
}
