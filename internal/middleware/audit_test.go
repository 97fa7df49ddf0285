package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"dental-clinic-backend/internal/domain/audit"
	"dental-clinic-backend/internal/ports/auth"
)

type testAuditRepo struct {
	entries []audit.Entry
}

func (r *testAuditRepo) Append(ctx context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *testAuditRepo) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	return r.entries, nil
}

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

func TestAudit_RegistraMutacionConActor(t *testing.T) {
	repo := &testAuditRepo{}
	svc := audit.NewService(repo, nil)

	resolve := func(r *http.Request, email string) (string, error) {
		if email != "ana@clinica.com" {
			t.Fatalf("email inesperado: %s", email)
		}
		return "persona-1", nil
	}

	h := Audit(svc, resolve)(okHandler(http.StatusCreated))

	req := httptest.NewRequest("POST", "/auth/register", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), auth.Claims{Email: "ana@clinica.com"}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entrada, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Accion != "registro" || e.Entidad != "Usuario" {
		t.Fatalf("entrada inesperada: %+v", e)
	}
	if e.ActorID == nil || *e.ActorID != "persona-1" {
		t.Fatalf("expected actor resuelto, got %v", e.ActorID)
	}
}

func TestAudit_IgnoraLecturasYFallos(t *testing.T) {
	repo := &testAuditRepo{}
	svc := audit.NewService(repo, nil)

	// GET no es auditable.
	h := Audit(svc, nil)(okHandler(http.StatusOK))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/consultas/abc", nil))

	// Una mutación que falló tampoco.
	h = Audit(svc, nil)(okHandler(http.StatusConflict))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/consultas", nil))

	if len(repo.entries) != 0 {
		t.Fatalf("expected bitácora vacía, got %+v", repo.entries)
	}
}
