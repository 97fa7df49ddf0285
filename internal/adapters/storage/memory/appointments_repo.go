package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dental-clinic-backend/internal/domain/appointments"
)

type AppointmentsRepo struct {
	mu    sync.RWMutex
	items map[string]appointments.Appointment
}

func NewAppointmentsRepo() *AppointmentsRepo {
	return &AppointmentsRepo{items: make(map[string]appointments.Appointment)}
}

func (r *AppointmentsRepo) Create(ctx context.Context, a appointments.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.slotConflictLocked(a); err != nil {
		return err
	}
	r.items[a.ID] = a
	return nil
}

func (r *AppointmentsRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return appointments.Appointment{}, appointments.ErrNotFound
	}
	return a, nil
}

func (r *AppointmentsRepo) Update(ctx context.Context, a appointments.Appointment) (appointments.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[a.ID]
	if !ok {
		return appointments.Appointment{}, appointments.ErrNotFound
	}
	if stored.Version != a.Version {
		return appointments.Appointment{}, appointments.ErrVersionConflict
	}
	if err := r.slotConflictLocked(a); err != nil {
		return appointments.Appointment{}, err
	}

	a.Version++
	r.items[a.ID] = a
	return a, nil
}

// slotConflictLocked aplica la unicidad de (fecha, slot, odontólogo) entre
// consultas no canceladas. Se llama con el lock tomado, así el chequeo y la
// escritura son atómicos frente a escritores concurrentes.
func (r *AppointmentsRepo) slotConflictLocked(a appointments.Appointment) error {
	if a.DentistID == "" || a.Status == appointments.StatusCancelada {
		return nil
	}
	for id, other := range r.items {
		if id == a.ID || other.Status == appointments.StatusCancelada {
			continue
		}
		if other.Fecha.Equal(a.Fecha) && other.SlotID == a.SlotID && other.DentistID == a.DentistID {
			return appointments.ErrSlotConflict
		}
	}
	return nil
}

func (r *AppointmentsRepo) ListByPatient(ctx context.Context, patientID string) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []appointments.Appointment
	for _, a := range r.items {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Fecha.Equal(out[j].Fecha) {
			return out[i].Fecha.Before(out[j].Fecha)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *AppointmentsRepo) FindActive(ctx context.Context, fecha time.Time, slotID, dentistID string) (appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.items {
		if a.Status == appointments.StatusCancelada {
			continue
		}
		if a.Fecha.Equal(fecha) && a.SlotID == slotID && a.DentistID == dentistID {
			return a, nil
		}
	}
	return appointments.Appointment{}, appointments.ErrNotFound
}

func (r *AppointmentsRepo) ListByStatuses(ctx context.Context, statuses ...appointments.Status) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[appointments.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []appointments.Appointment
	for _, a := range r.items {
		if want[a.Status] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SlotsRepo es un catálogo fijo de horarios, sembrado al construirse.
type SlotsRepo struct {
	slots []appointments.Slot
}

func NewSlotsRepo() *SlotsRepo {
	horas := []string{"08:00", "09:00", "10:00", "11:00", "14:00", "15:00", "16:00", "17:00"}
	slots := make([]appointments.Slot, 0, len(horas))
	for i, h := range horas {
		slots = append(slots, appointments.Slot{ID: fmt.Sprintf("horario-%d", i+1), Hora: h})
	}
	return &SlotsRepo{slots: slots}
}

func (r *SlotsRepo) GetByID(ctx context.Context, id string) (appointments.Slot, error) {
	for _, s := range r.slots {
		if s.ID == id {
			return s, nil
		}
	}
	return appointments.Slot{}, appointments.ErrNotFound
}

func (r *SlotsRepo) List(ctx context.Context) ([]appointments.Slot, error) {
	out := make([]appointments.Slot, len(r.slots))
	copy(out, r.slots)
	return out, nil
}

// TypesRepo es un catálogo fijo de tipos de consulta.
type TypesRepo struct {
	types []appointments.ConsultationType
}

func NewTypesRepo() *TypesRepo {
	return &TypesRepo{types: []appointments.ConsultationType{
		{ID: "tipo-1", Nombre: "Consulta general"},
		{ID: "tipo-2", Nombre: "Limpieza dental"},
		{ID: "tipo-3", Nombre: "Ortodoncia"},
		{ID: "tipo-4", Nombre: "Endodoncia"},
		{ID: "tipo-5", Nombre: "Extracción"},
	}}
}

func (r *TypesRepo) GetByID(ctx context.Context, id string) (appointments.ConsultationType, error) {
	for _, t := range r.types {
		if t.ID == id {
			return t, nil
		}
	}
	return appointments.ConsultationType{}, appointments.ErrNotFound
}

func (r *TypesRepo) List(ctx context.Context) ([]appointments.ConsultationType, error) {
	out := make([]appointments.ConsultationType, len(r.types))
	copy(out, r.types)
	return out, nil
}
