package accounts

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
	// Registro público (no inicia sesión).
	r.Post("/auth/register", registerHandler(svc))

	r.Route("/usuarios", func(ur chi.Router) {
		ur.Get("/me", meHandler(svc))
		ur.Patch("/me/notificaciones", notificationSettingsHandler(svc))

		// Cambio de rol, solo administradores.
		ur.Patch("/{personID}/rol", changeRoleHandler(svc))
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Telefono string `json:"telefono"`
	Sexo     string `json:"sexo"`

	Rol string `json:"rol"` // default: paciente

	CarnetIdentidad string `json:"carnetidentidad"`
	FechaNacimiento string `json:"fechanacimiento"` // YYYY-MM-DD
	Direccion       string `json:"direccion"`

	Especialidad string `json:"especialidad"`
	NroMatricula string `json:"nromatricula"`
}

type personResponse struct {
	ID       string `json:"id"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	Telefono string `json:"telefono,omitempty"`
	Sexo     string `json:"sexo,omitempty"`
	Rol      string `json:"rol"`

	RecibirNotificaciones bool `json:"recibir_notificaciones"`
	RecibirEmail          bool `json:"recibir_email"`
	RecibirPush           bool `json:"recibir_push"`
}

type registerResponse struct {
	OK      bool           `json:"ok"`
	Usuario personResponse `json:"usuario"`
	Subtipo string         `json:"subtipo"`
}

type errorResponse struct {
	Detail string   `json:"detail"`
	Fields []string `json:"fields,omitempty"`
}

func registerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid json"})
			return
		}

		var fn *time.Time
		if strings.TrimSpace(req.FechaNacimiento) != "" {
			t, err := time.Parse("2006-01-02", req.FechaNacimiento)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "fechanacimiento must be YYYY-MM-DD"})
				return
			}
			fn = &t
		}

		p, prof, err := svc.Register(r.Context(), RegisterInput{
			Email:           req.Email,
			Password:        req.Password,
			Nombre:          req.Nombre,
			Apellido:        req.Apellido,
			Telefono:        req.Telefono,
			Sexo:            req.Sexo,
			Role:            Role(strings.ToLower(strings.TrimSpace(req.Rol))),
			CarnetIdentidad: req.CarnetIdentidad,
			FechaNacimiento: fn,
			Direccion:       req.Direccion,
			Especialidad:    req.Especialidad,
			NroMatricula:    req.NroMatricula,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, registerResponse{
			OK:      true,
			Usuario: toPersonResponse(p),
			Subtipo: string(prof.Kind),
		})
	}
}

func meHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.ResolveByPrincipal(r.Context(), claims)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Detail: "usuario no encontrado"})
			return
		}

		writeJSON(w, http.StatusOK, toPersonResponse(p))
	}
}

type notificationSettingsRequest struct {
	RecibirNotificaciones *bool `json:"recibir_notificaciones"`
	RecibirEmail          *bool `json:"recibir_email"`
	RecibirPush           *bool `json:"recibir_push"`
}

func notificationSettingsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.ResolveByPrincipal(r.Context(), claims)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Detail: "usuario no encontrado"})
			return
		}

		var req notificationSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid json"})
			return
		}

		settings := NotificationSettings{
			RecibirNotificaciones: p.RecibirNotificaciones,
			RecibirEmail:          p.RecibirEmail,
			RecibirPush:           p.RecibirPush,
		}
		if req.RecibirNotificaciones != nil {
			settings.RecibirNotificaciones = *req.RecibirNotificaciones
		}
		if req.RecibirEmail != nil {
			settings.RecibirEmail = *req.RecibirEmail
		}
		if req.RecibirPush != nil {
			settings.RecibirPush = *req.RecibirPush
		}

		updated, err := svc.UpdateNotificationSettings(r.Context(), p.ID, settings)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPersonResponse(updated))
	}
}

type changeRoleRequest struct {
	Rol string `json:"rol"`
}

func changeRoleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req changeRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid json"})
			return
		}

		personID := chi.URLParam(r, "personID")
		newRole := Role(strings.ToLower(strings.TrimSpace(req.Rol)))

		updated, err := svc.ChangeRole(r.Context(), personID, newRole, claims)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPersonResponse(updated))
	}
}

func toPersonResponse(p Person) personResponse {
	return personResponse{
		ID:                    p.ID,
		Nombre:                p.Nombre,
		Apellido:              p.Apellido,
		Email:                 p.Email,
		Telefono:              p.Telefono,
		Sexo:                  p.Sexo,
		Rol:                   string(p.Role),
		RecibirNotificaciones: p.RecibirNotificaciones,
		RecibirEmail:          p.RecibirEmail,
		RecibirPush:           p.RecibirPush,
	}
}

func writeError(w http.ResponseWriter, err error) {
	var mf *MissingFieldsError
	switch {
	case errors.As(err, &mf):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "faltan campos del perfil", Fields: mf.Fields})
	case errors.Is(err, ErrInvalidBirthDate):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "fecha de nacimiento inválida"})
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
	case errors.Is(err, ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, errorResponse{Detail: "ya existe un usuario con ese email"})
	case errors.Is(err, ErrDuplicateNationalID):
		writeJSON(w, http.StatusConflict, errorResponse{Detail: "el carnet ya existe"})
	case errors.Is(err, ErrDuplicateLicense):
		writeJSON(w, http.StatusConflict, errorResponse{Detail: "el nro de matrícula ya existe"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Detail: "solo administradores pueden cambiar roles"})
	case errors.Is(err, ErrLastAdministrator):
		writeJSON(w, http.StatusForbidden, errorResponse{Detail: "no se puede quitar el último administrador"})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "no encontrado"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
	}
}

// writeJSON está duplicado a propósito en los handlers de cada módulo
// (misma convención que el resto del código) para no crear helpers
// compartidos antes de tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
