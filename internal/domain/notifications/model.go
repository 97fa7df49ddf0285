package notifications

import "time"

// Record es una fila del historial de notificaciones: un intento de entrega
// con su ciclo de vida completo. Nunca se borra.
type Record struct {
	ID string

	PersonID string
	Tipo     string
	Canal    string
	DeviceID *string // dispositivo usado en push, si hubo

	Titulo  string
	Mensaje string
	Datos   map[string]any

	Estado Status

	CreatedAt   time.Time
	ScheduledAt time.Time // fecha_envio programada; el despacho espera hasta acá
	SentAt      *time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time

	ErrorMensaje string
	Intentos     int
}

// Template es una plantilla por (tipo, canal) con variables {clave}.
type Template struct {
	ID     string
	Nombre string

	Tipo  string
	Canal string

	AsuntoTemplate  string // solo emails
	TituloTemplate  string
	MensajeTemplate string

	Variables []string
	Activo    bool
}
