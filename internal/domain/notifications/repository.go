package notifications

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, r Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, r Record) error

	// ListDue devuelve hasta limit registros pendientes con fecha de envío
	// vencida, ordenados por creación ascendente (FIFO).
	ListDue(ctx context.Context, now time.Time, limit int) ([]Record, error)

	ListByPerson(ctx context.Context, personID string, limit int) ([]Record, error)
}

// TemplateRepository resuelve la plantilla activa de un (tipo, canal).
type TemplateRepository interface {
	Get(ctx context.Context, tipo, canal string) (Template, error)
}
