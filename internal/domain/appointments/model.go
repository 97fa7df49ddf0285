package appointments

import "time"

// Slot (horario) es una hora agendable del catálogo finito.
// Hora en formato "15:04", única.
type Slot struct {
	ID   string
	Hora string
}

// ConsultationType (tipodeconsulta) clasifica la visita.
type ConsultationType struct {
	ID     string
	Nombre string
}

// Appointment representa una consulta agendada.
// Version implementa concurrencia optimista: un Update con versión vieja
// pierde la carrera y falla con ErrVersionConflict.
type Appointment struct {
	ID string

	Fecha  time.Time // solo la fecha; la hora viene del slot
	SlotID string

	PatientID      string
	DentistID      string // opcional
	ReceptionistID string // opcional

	TypeID string
	Status Status

	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}
