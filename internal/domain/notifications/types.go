package notifications

// Status es el estado de un registro de entrega (historialnotificacion).
// pendiente -> enviado | error ; enviado -> entregado -> leido llegan como
// confirmaciones fuera de banda del canal.
type Status string

const (
	StatusPendiente Status = "pendiente"
	StatusEnviado   Status = "enviado"
	StatusEntregado Status = "entregado"
	StatusLeido     Status = "leido"
	StatusError     Status = "error"
)

const (
	// maxErrorLen acota el mensaje de error almacenado.
	maxErrorLen = 1000

	// Límites del despacho en lote.
	defaultBatch = 200
	maxBatch     = 500
)
