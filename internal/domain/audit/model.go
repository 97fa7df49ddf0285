package audit

import "time"

// Entry es una fila de la bitácora. Append-only: nunca se modifica ni borra.
// ActorID puede ser nil (eventos previos a la autenticación).
type Entry struct {
	ID string

	Accion      string
	Descripcion string

	ActorID *string

	IPAddress string
	UserAgent string

	Entidad   string
	EntidadID string

	Datos map[string]any

	CreatedAt time.Time
}
