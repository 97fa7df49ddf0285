package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"dental-clinic-backend/internal/platform/logger"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrSlotConflict    = errors.New("slot already occupied")
	ErrBadState        = errors.New("invalid state for this operation")
	ErrVersionConflict = errors.New("concurrent update, retry")
)

// Directory es la vista mínima del directorio de cuentas que necesita el
// scheduler para validar referencias.
type Directory interface {
	HasRole(ctx context.Context, personID, role string) (bool, error)
}

// Notifier encola la notificación de confirmación. Best-effort: un error acá
// se loguea y nunca revierte el alta de la consulta.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a Appointment) error
}

type Service struct {
	repo      Repository
	slots     SlotRepository
	types     TypeRepository
	directory Directory
	notifier  Notifier
	log       logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, slots SlotRepository, types TypeRepository, directory Directory, notifier Notifier, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		slots:     slots,
		types:     types,
		directory: directory,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

type CreateInput struct {
	PatientID      string
	SlotID         string
	Fecha          time.Time
	TypeID         string
	DentistID      string
	ReceptionistID string
}

// Create agenda una consulta nueva en estado agendada. Valida referencias,
// rechaza con ErrSlotConflict una (fecha, slot, odontólogo) ya ocupada por
// una consulta no-cancelada y dispara la confirmación best-effort.
func (s *Service) Create(ctx context.Context, in CreateInput) (Appointment, error) {
	if strings.TrimSpace(in.PatientID) == "" || strings.TrimSpace(in.SlotID) == "" {
		return Appointment{}, ErrInvalidInput
	}
	if in.Fecha.IsZero() {
		return Appointment{}, ErrInvalidInput
	}

	if _, err := s.slots.GetByID(ctx, in.SlotID); err != nil {
		return Appointment{}, ErrInvalidInput
	}
	if _, err := s.types.GetByID(ctx, in.TypeID); err != nil {
		return Appointment{}, ErrInvalidInput
	}

	if ok, err := s.directory.HasRole(ctx, in.PatientID, "paciente"); err != nil {
		return Appointment{}, err
	} else if !ok {
		return Appointment{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.DentistID) != "" {
		if ok, err := s.directory.HasRole(ctx, in.DentistID, "odontologo"); err != nil {
			return Appointment{}, err
		} else if !ok {
			return Appointment{}, ErrInvalidInput
		}
	}

	if err := s.checkSlotFree(ctx, in.Fecha, in.SlotID, in.DentistID, ""); err != nil {
		return Appointment{}, err
	}

	now := s.now()
	a := Appointment{
		ID:             uuid.NewString(),
		Fecha:          dateOnly(in.Fecha),
		SlotID:         in.SlotID,
		PatientID:      in.PatientID,
		DentistID:      strings.TrimSpace(in.DentistID),
		ReceptionistID: strings.TrimSpace(in.ReceptionistID),
		TypeID:         in.TypeID,
		Status:         StatusAgendada,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return Appointment{}, err
	}

	// Confirmación best-effort: nunca revierte la consulta ya creada.
	if s.notifier != nil {
		if err := s.notifier.AppointmentBooked(ctx, a); err != nil {
			s.log.Warn("no se pudo encolar la confirmación de cita", map[string]any{
				"consulta_id": a.ID, "error": err.Error(),
			})
		}
	}

	return a, nil
}

// Reschedule mueve la consulta a otra (fecha, slot) sobre la misma fila,
// preservando su identidad, y la marca reprogramada.
func (s *Service) Reschedule(ctx context.Context, id string, newFecha time.Time, newSlotID string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.TrimSpace(newSlotID) == "" || newFecha.IsZero() {
		return Appointment{}, ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if a.Status.Terminal() {
		return Appointment{}, ErrBadState
	}

	if _, err := s.slots.GetByID(ctx, newSlotID); err != nil {
		return Appointment{}, ErrInvalidInput
	}

	if err := s.checkSlotFree(ctx, newFecha, newSlotID, a.DentistID, a.ID); err != nil {
		return Appointment{}, err
	}

	a.Fecha = dateOnly(newFecha)
	a.SlotID = newSlotID
	a.Status = StatusReprogramada
	a.UpdatedAt = s.now()

	return s.repo.Update(ctx, a)
}

// Cancel marca la consulta como cancelada. La fila se conserva para la
// trazabilidad de la bitácora. Idempotente.
func (s *Service) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == StatusCancelada {
		return nil
	}

	a.Status = StatusCancelada
	a.UpdatedAt = s.now()

	_, err = s.repo.Update(ctx, a)
	return err
}

// UpdateStatus es el override administrativo de estado. Solo valida que el
// estado destino exista.
func (s *Service) UpdateStatus(ctx context.Context, id string, newStatus Status) (Appointment, error) {
	if !newStatus.Valid() {
		return Appointment{}, ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}

	a.Status = newStatus
	a.UpdatedAt = s.now()

	return s.repo.Update(ctx, a)
}

// MarkLateIfOverdue pasa a demorada toda consulta agendada/en_hora cuya
// fecha+hora de slot ya quedó estrictamente en el pasado. Idempotente y
// seguro de correr concurrente: el perdedor de una carrera de versión se
// saltea sin error.
func (s *Service) MarkLateIfOverdue(ctx context.Context) (int, error) {
	items, err := s.repo.ListByStatuses(ctx, StatusAgendada, StatusEnHora)
	if err != nil {
		return 0, err
	}

	now := s.now()
	marked := 0

	for _, a := range items {
		due, err := s.slotDeadline(ctx, a)
		if err != nil {
			s.log.Warn("consulta con horario irresoluble en barrido", map[string]any{
				"consulta_id": a.ID, "error": err.Error(),
			})
			continue
		}
		if !due.Before(now) {
			continue
		}

		a.Status = StatusDemorada
		a.UpdatedAt = now

		if _, err := s.repo.Update(ctx, a); err != nil {
			if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrNotFound) {
				// Otro proceso ganó la carrera; el barrido es idempotente.
				continue
			}
			return marked, err
		}
		marked++
	}

	return marked, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListSlots(ctx context.Context) ([]Slot, error) {
	return s.slots.List(ctx)
}

func (s *Service) ListTypes(ctx context.Context) ([]ConsultationType, error) {
	return s.types.List(ctx)
}

// checkSlotFree exige que (fecha, slot, odontólogo) esté libre de consultas
// no-canceladas. Sin odontólogo asignado no hay recurso exclusivo que chocar.
func (s *Service) checkSlotFree(ctx context.Context, fecha time.Time, slotID, dentistID, excludeID string) error {
	if strings.TrimSpace(dentistID) == "" {
		return nil
	}

	existing, err := s.repo.FindActive(ctx, dateOnly(fecha), slotID, dentistID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == excludeID {
		return nil
	}
	return ErrSlotConflict
}

// slotDeadline combina la fecha de la consulta con la hora del slot.
func (s *Service) slotDeadline(ctx context.Context, a Appointment) (time.Time, error) {
	slot, err := s.slots.GetByID(ctx, a.SlotID)
	if err != nil {
		return time.Time{}, err
	}
	hm, err := time.Parse("15:04", slot.Hora)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(
		a.Fecha.Year(), a.Fecha.Month(), a.Fecha.Day(),
		hm.Hour(), hm.Minute(), 0, 0, time.UTC,
	), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
