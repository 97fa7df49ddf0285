package notifications

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"dental-clinic-backend/internal/platform/logger"
	"dental-clinic-backend/internal/ports/channel"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrNotFoundOrNotPending = errors.New("not-found-or-not-pending")
	ErrTooEarly             = errors.New("too-early")
	ErrBadState             = errors.New("invalid state")
)

// EmailDirectory resuelve la dirección de email de una persona.
type EmailDirectory interface {
	EmailOf(ctx context.Context, personID string) (string, error)
}

// DeviceDirectory resuelve el único dispositivo push activo de una persona.
type DeviceDirectory interface {
	ActiveDevice(ctx context.Context, personID string) (deviceID, token string, err error)
}

type Service struct {
	repo      Repository
	templates TemplateRepository // puede ser nil: sin plantillas, manda el título del caller
	senders   map[string]channel.Sender
	emails    EmailDirectory
	devices   DeviceDirectory
	log       logger.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	templates TemplateRepository,
	senders map[string]channel.Sender,
	emails EmailDirectory,
	devices DeviceDirectory,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		templates: templates,
		senders:   senders,
		emails:    emails,
		devices:   devices,
		log:       log,
		now:       time.Now,
	}
}

type EnqueueInput struct {
	PersonID string
	Tipo     string
	Canal    string

	// Título/mensaje directos. Si hay plantilla activa para (tipo, canal)
	// y vienen vacíos, se renderiza la plantilla con Datos como variables.
	Titulo  string
	Mensaje string
	Datos   map[string]any

	// ScheduledAt nil => despachar apenas corra el próximo lote.
	ScheduledAt *time.Time
}

// Enqueue crea un registro pendiente. Nunca envía en línea: el despacho lo
// hace dispatchDue desde un trigger periódico, desacoplando la latencia de
// entrega de la del request que originó la notificación.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (Record, error) {
	if strings.TrimSpace(in.PersonID) == "" || strings.TrimSpace(in.Tipo) == "" || strings.TrimSpace(in.Canal) == "" {
		return Record{}, ErrInvalidInput
	}

	now := s.now()

	titulo := strings.TrimSpace(in.Titulo)
	mensaje := strings.TrimSpace(in.Mensaje)
	if titulo == "" && s.templates != nil {
		if tpl, err := s.templates.Get(ctx, in.Tipo, in.Canal); err == nil && tpl.Activo {
			titulo, mensaje = tpl.Render(in.Datos)
		}
	}
	if titulo == "" {
		return Record{}, ErrInvalidInput
	}

	scheduled := now
	if in.ScheduledAt != nil {
		scheduled = *in.ScheduledAt
	}

	r := Record{
		ID:          uuid.NewString(),
		PersonID:    strings.TrimSpace(in.PersonID),
		Tipo:        strings.TrimSpace(in.Tipo),
		Canal:       strings.ToLower(strings.TrimSpace(in.Canal)),
		Titulo:      titulo,
		Mensaje:     mensaje,
		Datos:       in.Datos,
		Estado:      StatusPendiente,
		CreatedAt:   now,
		ScheduledAt: scheduled,
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// DispatchResult es el resultado de un intento de despacho individual.
type DispatchResult struct {
	RecordID string `json:"id"`
	Sent     bool   `json:"sent"`
	SentTo   int    `json:"sent_to,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DispatchSummary agrega los resultados de un lote.
type DispatchSummary struct {
	Processed int              `json:"processed"`
	Sent      int              `json:"sent"`
	Errors    int              `json:"errors"`
	Items     []DispatchResult `json:"items"`
}

// DispatchOne despacha un registro pendiente puntual.
// ErrNotFoundOrNotPending si no existe o no está pendiente; ErrTooEarly si
// su fecha de envío sigue en el futuro (reintentable, no es un error real).
// El fallo del canal se registra en la fila, nunca se propaga.
func (s *Service) DispatchOne(ctx context.Context, id string) (DispatchResult, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return DispatchResult{}, ErrNotFoundOrNotPending
	}
	if rec.Estado != StatusPendiente {
		return DispatchResult{}, ErrNotFoundOrNotPending
	}

	now := s.now()
	if rec.ScheduledAt.After(now) {
		return DispatchResult{}, ErrTooEarly
	}

	return s.dispatchRecord(ctx, rec, now), nil
}

// DispatchDue despacha hasta maxCount registros pendientes vencidos, FIFO
// por orden de creación. maxCount <= 0 usa el default; tope duro en 500.
// El fallo de un registro no aborta el lote.
func (s *Service) DispatchDue(ctx context.Context, maxCount int) (DispatchSummary, error) {
	if maxCount <= 0 {
		maxCount = defaultBatch
	}
	if maxCount > maxBatch {
		maxCount = maxBatch
	}

	now := s.now()
	due, err := s.repo.ListDue(ctx, now, maxCount)
	if err != nil {
		return DispatchSummary{}, err
	}

	summary := DispatchSummary{Items: make([]DispatchResult, 0, len(due))}
	for _, rec := range due {
		res := s.dispatchRecord(ctx, rec, now)
		summary.Processed++
		if res.Sent {
			summary.Sent++
		} else {
			summary.Errors++
		}
		summary.Items = append(summary.Items, res)
	}

	return summary, nil
}

// dispatchRecord ejecuta un intento: resuelve direcciones, invoca el sender
// y deja el registro en enviado o error. No devuelve error: el resultado va
// en la fila y en el DispatchResult.
func (s *Service) dispatchRecord(ctx context.Context, rec Record, now time.Time) DispatchResult {
	addresses, deviceID, err := s.resolveAddresses(ctx, rec)
	if err == nil {
		sender, ok := s.senders[rec.Canal]
		if !ok {
			err = errors.New("canal sin sender configurado: " + rec.Canal)
		} else {
			err = sender.Send(ctx, addresses, rec.Titulo, rec.Mensaje, rec.Datos)
		}
	}

	rec.Intentos++
	rec.DeviceID = deviceID

	if err != nil {
		rec.Estado = StatusError
		rec.ErrorMensaje = truncate(err.Error(), maxErrorLen)

		if uerr := s.repo.Update(ctx, rec); uerr != nil {
			s.log.Error("no se pudo persistir el fallo de entrega", map[string]any{
				"record_id": rec.ID, "error": uerr.Error(),
			})
		}
		return DispatchResult{RecordID: rec.ID, Sent: false, Error: rec.ErrorMensaje}
	}

	rec.Estado = StatusEnviado
	rec.SentAt = &now
	rec.ErrorMensaje = ""

	if uerr := s.repo.Update(ctx, rec); uerr != nil {
		s.log.Error("no se pudo persistir el envío", map[string]any{
			"record_id": rec.ID, "error": uerr.Error(),
		})
	}
	return DispatchResult{RecordID: rec.ID, Sent: true, SentTo: len(addresses)}
}

func (s *Service) resolveAddresses(ctx context.Context, rec Record) ([]string, *string, error) {
	switch rec.Canal {
	case "email":
		addr, err := s.emails.EmailOf(ctx, rec.PersonID)
		if err != nil {
			return nil, nil, errors.New("sin email para el destinatario")
		}
		return []string{addr}, nil, nil

	case "push":
		// Exactamente un token por destinatario: el dispositivo activo.
		deviceID, token, err := s.devices.ActiveDevice(ctx, rec.PersonID)
		if err != nil || token == "" {
			return nil, nil, errors.New("sin dispositivo activo para push")
		}
		return []string{token}, &deviceID, nil

	default:
		// Canales sin resolución propia (sms, whatsapp): el sender decide
		// con los datos del registro.
		return nil, nil, nil
	}
}

// MarkDelivered registra la confirmación de entrega fuera de banda.
func (s *Service) MarkDelivered(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Estado != StatusEnviado {
		return Record{}, ErrBadState
	}

	now := s.now()
	rec.Estado = StatusEntregado
	rec.DeliveredAt = &now

	if err := s.repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// MarkRead registra la confirmación de lectura fuera de banda.
func (s *Service) MarkRead(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Estado != StatusEnviado && rec.Estado != StatusEntregado {
		return Record{}, ErrBadState
	}

	now := s.now()
	rec.Estado = StatusLeido
	rec.ReadAt = &now

	if err := s.repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPerson(ctx context.Context, personID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByPerson(ctx, personID, limit)
}

// truncate corta en bytes sin partir una runa: los mensajes de error vienen
// en castellano y un corte a mitad de tilde dejaría UTF-8 inválido en base.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
