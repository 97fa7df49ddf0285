package preferences

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dental-clinic-backend/internal/ports/auth"
)

func RegisterRoutes(r chi.Router, svc *Service, resolve func(r *http.Request) (string, bool)) {
	r.Route("/preferencias", func(pr chi.Router) {
		pr.Get("/", listPreferencesHandler(svc, resolve))
		pr.Put("/", setPreferenceHandler(svc, resolve))
	})

	r.Post("/dispositivos", registerDeviceHandler(svc, resolve))
}

// ResolveWith arma el resolver estándar: claims del contexto -> person id.
func ResolveWith(lookup func(r *http.Request, email string) (string, error)) func(r *http.Request) (string, bool) {
	return func(r *http.Request) (string, bool) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			return "", false
		}
		email := strings.TrimSpace(claims.Email)
		if email == "" {
			email = strings.TrimSpace(claims.UserID)
		}
		id, err := lookup(r, email)
		if err != nil || id == "" {
			return "", false
		}
		return id, true
	}
}

type setPreferenceRequest struct {
	Tipo   string `json:"tipo"`
	Canal  string `json:"canal"`
	Activo bool   `json:"activo"`
}

type preferenceResponse struct {
	ID     string `json:"id"`
	Tipo   string `json:"tipo"`
	Canal  string `json:"canal"`
	Activo bool   `json:"activo"`
}

func listPreferencesHandler(svc *Service, resolve func(r *http.Request) (string, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, ok := resolve(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListPreferences(r.Context(), personID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]preferenceResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPreferenceResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func setPreferenceHandler(svc *Service, resolve func(r *http.Request) (string, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, ok := resolve(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req setPreferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.SetPreference(r.Context(), personID, req.Tipo, Channel(strings.ToLower(req.Canal)), req.Activo)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toPreferenceResponse(p))
	}
}

type registerDeviceRequest struct {
	TokenFCM   string `json:"token_fcm"`
	Plataforma string `json:"plataforma"`
	Modelo     string `json:"modelo_dispositivo"`
	VersionApp string `json:"version_app"`
}

func registerDeviceHandler(svc *Service, resolve func(r *http.Request) (string, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, ok := resolve(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req registerDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		// El modelo puede venir por header si el cliente no lo manda en el body.
		if strings.TrimSpace(req.Modelo) == "" {
			if m := strings.TrimSpace(r.Header.Get("X-Device-Model")); m != "" {
				req.Modelo = m
			} else if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
				req.Modelo = ua
			}
		}
		if len(req.Modelo) > 100 {
			req.Modelo = req.Modelo[:100]
		}

		d, created, err := svc.RegisterDevice(r.Context(), RegisterDeviceInput{
			PersonID:   personID,
			Token:      req.TokenFCM,
			Plataforma: req.Plataforma,
			Modelo:     req.Modelo,
			VersionApp: req.VersionApp,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ok":                 true,
			"created":            created,
			"device_id":          d.ID,
			"plataforma":         d.Plataforma,
			"modelo_dispositivo": d.Modelo,
			"version_app":        d.VersionApp,
		})
	}
}

func toPreferenceResponse(p Preference) preferenceResponse {
	return preferenceResponse{
		ID:     p.ID,
		Tipo:   p.Tipo,
		Canal:  string(p.Canal),
		Activo: p.Activo,
	}
}

// writeJSON duplicado a propósito por módulo (ver handler de accounts).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
