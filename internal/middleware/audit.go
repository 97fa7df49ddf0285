package middleware

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"dental-clinic-backend/internal/domain/audit"
	"dental-clinic-backend/internal/ports/auth"
)

// ActorResolver traduce el email del principal al ID de la Person de dominio.
type ActorResolver func(r *http.Request, email string) (string, error)

// Audit registra en bitácora las mutaciones relevantes. La decisión de
// auditar es una función pura de (prefijo de ruta, método, status 2xx/3xx);
// el registro en sí es best-effort y nunca afecta la respuesta.
func Audit(rec *audit.Service, resolveActor ActorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			accion, descripcion, entidad := determineAction(r.URL.Path, r.Method)
			if accion == "" {
				return
			}
			status := ww.Status()
			if status < 200 || status >= 400 {
				return
			}

			actorID := ""
			if claims, ok := auth.ClaimsFromContext(r.Context()); ok && resolveActor != nil {
				email := strings.TrimSpace(claims.Email)
				if email == "" {
					email = strings.TrimSpace(claims.UserID)
				}
				if id, err := resolveActor(r, email); err == nil {
					actorID = id
				}
			}

			rec.Record(r.Context(), audit.RecordInput{
				Accion:      accion,
				Descripcion: descripcion,
				ActorID:     actorID,
				IPAddress:   ClientIP(r),
				UserAgent:   r.UserAgent(),
				Entidad:     entidad,
				EntidadID:   pathObjectID(r.URL.Path, entidad),
				Datos: map[string]any{
					"path":        r.URL.Path,
					"method":      r.Method,
					"status_code": status,
					"source":      "middleware",
				},
			})
		})
	}
}

// determineAction deriva (acción, descripción, entidad) de ruta y método.
// Devuelve acción vacía si el request no es auditable.
func determineAction(path, method string) (accion, descripcion, entidad string) {
	switch {
	case strings.HasPrefix(path, "/auth/register") && method == http.MethodPost:
		return "registro", "Nuevo usuario registrado", "Usuario"

	case strings.HasPrefix(path, "/consultas"):
		entidad = "Consulta"
		switch {
		case method == http.MethodPost && strings.Contains(path, "/cancelar"):
			return "cancelar_cita", "Cita cancelada", entidad
		case method == http.MethodPost && strings.Contains(path, "/reprogramar"):
			return "reprogramar_cita", "Cita reprogramada", entidad
		case method == http.MethodPost && strings.Contains(path, "/barrido"):
			return "", "", ""
		case method == http.MethodPost:
			return "crear_cita", "Nueva cita creada", entidad
		case method == http.MethodPatch || method == http.MethodPut:
			return "modificar_cita", "Cita modificada", entidad
		}
		return "", "", ""

	case strings.HasPrefix(path, "/usuarios"):
		entidad = "Usuario"
		switch method {
		case http.MethodPatch, http.MethodPut:
			return "modificar_usuario", "Usuario modificado", entidad
		}
		return "", "", ""

	case strings.HasPrefix(path, "/dispositivos") && method == http.MethodPost:
		return "registrar_dispositivo", "Dispositivo móvil registrado", "DispositivoMovil"
	}

	return "", "", ""
}

// pathObjectID extrae el segmento de ID de rutas tipo /consultas/{id}/...
func pathObjectID(path, entidad string) string {
	if entidad == "" {
		return ""
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	id := parts[1]
	// Subrutas conocidas no son IDs.
	switch id {
	case "me", "barrido-demoradas":
		return ""
	}
	return id
}

// ClientIP obtiene la IP del cliente considerando proxies.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	if xr := r.Header.Get("X-Real-Ip"); xr != "" {
		return strings.TrimSpace(xr)
	}
	if cf := r.Header.Get("Cf-Connecting-Ip"); cf != "" {
		return strings.TrimSpace(cf)
	}

	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		addr = addr[:i]
	}
	return addr
}
