package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dental-clinic-backend/internal/ports/auth"
)

// AdminChecker decide si el principal tiene privilegio de administrador.
type AdminChecker interface {
	IsAdministrator(ctx context.Context, claims auth.Claims) bool
}

func RegisterRoutes(r chi.Router, svc *Service, admins AdminChecker) {
	r.Get("/bitacora", listHandler(svc, admins))
}

type entryResponse struct {
	ID          string         `json:"id"`
	Accion      string         `json:"accion"`
	Descripcion string         `json:"descripcion"`
	ActorID     *string        `json:"actor_id"`
	IPAddress   string         `json:"ip_address"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Entidad     string         `json:"modelo_afectado,omitempty"`
	EntidadID   string         `json:"objeto_id,omitempty"`
	Datos       map[string]any `json:"datos_adicionales,omitempty"`
	CreatedAt   time.Time      `json:"fecha"`
}

func listHandler(svc *Service, admins AdminChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !admins.IsAdministrator(r.Context(), claims) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}

		items, err := svc.ListRecent(r.Context(), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]entryResponse, 0, len(items))
		for _, e := range items {
			out = append(out, entryResponse{
				ID:          e.ID,
				Accion:      e.Accion,
				Descripcion: e.Descripcion,
				ActorID:     e.ActorID,
				IPAddress:   e.IPAddress,
				UserAgent:   e.UserAgent,
				Entidad:     e.Entidad,
				EntidadID:   e.EntidadID,
				Datos:       e.Datos,
				CreatedAt:   e.CreatedAt,
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// writeJSON duplicado a propósito por módulo (ver handler de accounts).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
