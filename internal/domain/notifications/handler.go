package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dental-clinic-backend/internal/ports/auth"
)

func RegisterRoutes(r chi.Router, svc *Service, resolve func(r *http.Request) (string, bool)) {
	r.Route("/notificaciones", func(nr chi.Router) {
		nr.Post("/", enqueueHandler(svc))
		nr.Get("/", listMineHandler(svc, resolve))
		nr.Get("/{recordID}", getHandler(svc))
		nr.Post("/{recordID}/despachar", dispatchOneHandler(svc))
		nr.Post("/{recordID}/entregada", markDeliveredHandler(svc))
		nr.Post("/{recordID}/leida", markReadHandler(svc))

		// Despacho en lote server-to-server (cron/lambda). Gate por secreto:
		// si NOTIF_DISPATCH_SECRET está definido, exige X-Notif-Secret.
		nr.Post("/despachar-vencidas", dispatchDueHandler(svc))
	})
}

type enqueueRequest struct {
	PersonID    string         `json:"codusuario"`
	Tipo        string         `json:"tipo"`
	Canal       string         `json:"canal"`
	Titulo      string         `json:"titulo"`
	Mensaje     string         `json:"mensaje"`
	Datos       map[string]any `json:"datos_adicionales"`
	ScheduledAt string         `json:"fecha_envio"` // RFC3339, opcional
}

type recordResponse struct {
	ID       string         `json:"id"`
	PersonID string         `json:"codusuario"`
	Tipo     string         `json:"tipo"`
	Canal    string         `json:"canal"`
	Titulo   string         `json:"titulo"`
	Mensaje  string         `json:"mensaje"`
	Estado   string         `json:"estado"`
	Intentos int            `json:"intentos"`
	Error    string         `json:"error_mensaje,omitempty"`
	Datos    map[string]any `json:"datos_adicionales,omitempty"`
}

func enqueueHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var scheduled *time.Time
		if strings.TrimSpace(req.ScheduledAt) != "" {
			t, err := time.Parse(time.RFC3339, req.ScheduledAt)
			if err != nil {
				http.Error(w, "fecha_envio must be RFC3339", http.StatusBadRequest)
				return
			}
			scheduled = &t
		}

		rec, err := svc.Enqueue(r.Context(), EnqueueInput{
			PersonID:    req.PersonID,
			Tipo:        req.Tipo,
			Canal:       req.Canal,
			Titulo:      req.Titulo,
			Mensaje:     req.Mensaje,
			Datos:       req.Datos,
			ScheduledAt: scheduled,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// listMineHandler devuelve el historial del principal, lo más nuevo primero.
func listMineHandler(svc *Service, resolve func(r *http.Request) (string, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, ok := resolve(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}

		recs, err := svc.ListByPerson(r.Context(), personID, limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]recordResponse, 0, len(recs))
		for _, rec := range recs {
			out = append(out, toRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, err := svc.GetByID(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

func dispatchOneHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		res, err := svc.DispatchOne(r.Context(), chi.URLParam(r, "recordID"))
		switch {
		case errors.Is(err, ErrNotFoundOrNotPending):
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "not-found-or-not-pending"})
			return
		case errors.Is(err, ErrTooEarly):
			// Reintentable: 202, no es un error.
			writeJSON(w, http.StatusAccepted, map[string]any{"detail": "too-early"})
			return
		case err != nil:
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func dispatchDueHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret := os.Getenv("NOTIF_DISPATCH_SECRET"); secret != "" {
			if r.Header.Get("X-Notif-Secret") != secret {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		maxCount := 0
		if raw := r.URL.Query().Get("max"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				maxCount = n
			}
		}

		summary, err := svc.DispatchDue(r.Context(), maxCount)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func markDeliveredHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, err := svc.MarkDelivered(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

func markReadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, err := svc.MarkRead(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadState):
		http.Error(w, "estado inválido para la transición", http.StatusConflict)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:       rec.ID,
		PersonID: rec.PersonID,
		Tipo:     rec.Tipo,
		Canal:    rec.Canal,
		Titulo:   rec.Titulo,
		Mensaje:  rec.Mensaje,
		Estado:   string(rec.Estado),
		Intentos: rec.Intentos,
		Error:    rec.ErrorMensaje,
		Datos:    rec.Datos,
	}
}

// writeJSON duplicado a propósito por módulo (ver handler de accounts).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
