package appointments

import (
	"context"
	"time"
)

// Repository persiste consultas. Update compara Appointment.Version con la
// versión almacenada: si no coincide devuelve ErrVersionConflict; si coincide
// persiste con Version+1. Así los Update concurrentes sobre la misma consulta
// quedan serializados y el perdedor falla limpio.
type Repository interface {
	// Create inserta la consulta. La unicidad de (fecha, slot, odontólogo)
	// entre consultas no canceladas la arbitra el propio adapter de forma
	// atómica (índice único parcial en Postgres, chequeo bajo lock en
	// memoria) y falla con ErrSlotConflict; el pre-chequeo del service es
	// solo el camino rápido.
	Create(ctx context.Context, a Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	// Update aplica además la misma unicidad de franja que Create cuando el
	// destino queda ocupado por otra consulta no cancelada.
	Update(ctx context.Context, a Appointment) (Appointment, error)

	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)

	// FindActive busca una consulta no-cancelada que ocupe (fecha, slot, odontólogo).
	FindActive(ctx context.Context, fecha time.Time, slotID, dentistID string) (Appointment, error)

	// ListByStatuses devuelve consultas en cualquiera de los estados dados.
	ListByStatuses(ctx context.Context, statuses ...Status) ([]Appointment, error)
}

// SlotRepository es el catálogo de horarios agendables.
type SlotRepository interface {
	GetByID(ctx context.Context, id string) (Slot, error)
	List(ctx context.Context) ([]Slot, error)
}

// TypeRepository es el catálogo de tipos de consulta.
type TypeRepository interface {
	GetByID(ctx context.Context, id string) (ConsultationType, error)
	List(ctx context.Context) ([]ConsultationType, error)
}
