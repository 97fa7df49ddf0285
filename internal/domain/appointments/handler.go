package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dental-clinic-backend/internal/ports/auth"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/consultas", func(cr chi.Router) {
		cr.Post("/", createHandler(svc))
		cr.Get("/{consultaID}", getHandler(svc))
		cr.Patch("/{consultaID}", updateStatusHandler(svc))
		cr.Post("/{consultaID}/reprogramar", rescheduleHandler(svc))
		cr.Post("/{consultaID}/cancelar", cancelHandler(svc))

		// Barrido de demoradas; lo dispara un trigger periódico externo.
		cr.Post("/barrido-demoradas", sweepHandler(svc))
	})

	// Catálogos de soporte.
	r.Get("/horarios", listSlotsHandler(svc))
	r.Get("/tipos-consulta", listTypesHandler(svc))
}

type createRequest struct {
	Fecha           string `json:"fecha"` // YYYY-MM-DD
	CodPaciente     string `json:"codpaciente"`
	CodOdontologo   string `json:"cododontologo"`
	CodRecepcionista string `json:"codrecepcionista"`
	IDHorario       string `json:"idhorario"`
	IDTipoConsulta  string `json:"idtipoconsulta"`
}

type appointmentResponse struct {
	ID               string `json:"id"`
	Fecha            string `json:"fecha"`
	IDHorario        string `json:"idhorario"`
	CodPaciente      string `json:"codpaciente"`
	CodOdontologo    string `json:"cododontologo,omitempty"`
	CodRecepcionista string `json:"codrecepcionista,omitempty"`
	IDTipoConsulta   string `json:"idtipoconsulta"`
	Estado           string `json:"estado"`
}

func createHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		fecha, err := time.Parse("2006-01-02", strings.TrimSpace(req.Fecha))
		if err != nil {
			http.Error(w, "fecha must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		a, err := svc.Create(r.Context(), CreateInput{
			PatientID:      req.CodPaciente,
			SlotID:         req.IDHorario,
			Fecha:          fecha,
			TypeID:         req.IDTipoConsulta,
			DentistID:      req.CodOdontologo,
			ReceptionistID: req.CodRecepcionista,
		})
		if err != nil {
			writeAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(a))
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a, err := svc.GetByID(r.Context(), chi.URLParam(r, "consultaID"))
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(a))
	}
}

type updateStatusRequest struct {
	Estado string `json:"idestadoconsulta"`
}

func updateStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "consultaID"), Status(strings.TrimSpace(req.Estado)))
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(a))
	}
}

type rescheduleRequest struct {
	Fecha     string `json:"fecha"`
	IDHorario string `json:"idhorario"`
}

func rescheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req rescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		fecha, err := time.Parse("2006-01-02", strings.TrimSpace(req.Fecha))
		if err != nil {
			http.Error(w, "fecha must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		a, err := svc.Reschedule(r.Context(), chi.URLParam(r, "consultaID"), fecha, req.IDHorario)
		if err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(a))
	}
}

func cancelHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Cancel(r.Context(), chi.URLParam(r, "consultaID")); err != nil {
			writeAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func sweepHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.MarkLateIfOverdue(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "demoradas": n})
	}
}

type slotResponse struct {
	ID   string `json:"id"`
	Hora string `json:"hora"`
}

type typeResponse struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
}

func listSlotsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListSlots(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]slotResponse, 0, len(items))
		for _, s := range items {
			out = append(out, slotResponse{ID: s.ID, Hora: s.Hora})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listTypesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListTypes(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]typeResponse, 0, len(items))
		for _, t := range items {
			out = append(out, typeResponse{ID: t.ID, Nombre: t.Nombre})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toAppointmentResponse(a Appointment) appointmentResponse {
	return appointmentResponse{
		ID:               a.ID,
		Fecha:            a.Fecha.Format("2006-01-02"),
		IDHorario:        a.SlotID,
		CodPaciente:      a.PatientID,
		CodOdontologo:    a.DentistID,
		CodRecepcionista: a.ReceptionistID,
		IDTipoConsulta:   a.TypeID,
		Estado:           string(a.Status),
	}
}

func writeAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSlotConflict):
		http.Error(w, "el horario ya está ocupado", http.StatusConflict)
	case errors.Is(err, ErrBadState):
		http.Error(w, "estado inválido para la operación", http.StatusConflict)
	case errors.Is(err, ErrVersionConflict):
		http.Error(w, "conflicto de actualización concurrente", http.StatusConflict)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "consulta no encontrada", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON duplicado a propósito por módulo (ver handler de accounts).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
