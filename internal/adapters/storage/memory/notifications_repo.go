package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dental-clinic-backend/internal/domain/notifications"
)

type NotificationsRepo struct {
	mu    sync.RWMutex
	items map[string]notifications.Record
}

func NewNotificationsRepo() *NotificationsRepo {
	return &NotificationsRepo{items: make(map[string]notifications.Record)}
}

func (r *NotificationsRepo) Create(ctx context.Context, rec notifications.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[rec.ID] = rec
	return nil
}

func (r *NotificationsRepo) GetByID(ctx context.Context, id string) (notifications.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.items[id]
	if !ok {
		return notifications.Record{}, notifications.ErrNotFound
	}
	return rec, nil
}

func (r *NotificationsRepo) Update(ctx context.Context, rec notifications.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[rec.ID]; !ok {
		return notifications.ErrNotFound
	}
	r.items[rec.ID] = rec
	return nil
}

func (r *NotificationsRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]notifications.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []notifications.Record
	for _, rec := range r.items {
		if rec.Estado == notifications.StatusPendiente && !rec.ScheduledAt.After(now) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationsRepo) ListByPerson(ctx context.Context, personID string, limit int) ([]notifications.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []notifications.Record
	for _, rec := range r.items {
		if rec.PersonID == personID {
			out = append(out, rec)
		}
	}
	// Historial: lo más nuevo primero.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TemplatesRepo es un catálogo de plantillas sembrado al construirse.
type TemplatesRepo struct {
	templates map[string]notifications.Template // (tipo|canal) -> plantilla
}

func NewTemplatesRepo() *TemplatesRepo {
	r := &TemplatesRepo{templates: make(map[string]notifications.Template)}

	for _, t := range []notifications.Template{
		{
			ID: "tpl-1", Nombre: "Confirmación por email",
			Tipo: "confirmacion_cita", Canal: "email",
			AsuntoTemplate:  "Cita confirmada - Clínica Dental",
			TituloTemplate:  "Cita confirmada",
			MensajeTemplate: "Hola {nombre}, tu cita del {fecha} a las {hora} quedó confirmada.",
			Variables:       []string{"nombre", "fecha", "hora"},
			Activo:          true,
		},
		{
			ID: "tpl-2", Nombre: "Confirmación push",
			Tipo: "confirmacion_cita", Canal: "push",
			TituloTemplate:  "Cita confirmada",
			MensajeTemplate: "Tu cita del {fecha} a las {hora} quedó confirmada.",
			Variables:       []string{"fecha", "hora"},
			Activo:          true,
		},
		{
			ID: "tpl-3", Nombre: "Recordatorio por email",
			Tipo: "recordatorio_cita", Canal: "email",
			AsuntoTemplate:  "Recordatorio de cita - Clínica Dental",
			TituloTemplate:  "Recordatorio de cita",
			MensajeTemplate: "Hola {nombre}, te recordamos tu cita del {fecha} a las {hora}.",
			Variables:       []string{"nombre", "fecha", "hora"},
			Activo:          true,
		},
		{
			ID: "tpl-4", Nombre: "Cambio de cita por email",
			Tipo: "cambio_cita", Canal: "email",
			AsuntoTemplate:  "Cambio en tu cita - Clínica Dental",
			TituloTemplate:  "Tu cita cambió",
			MensajeTemplate: "Hola {nombre}, tu cita fue {cambio}. Nueva fecha: {fecha} a las {hora}.",
			Variables:       []string{"nombre", "cambio", "fecha", "hora"},
			Activo:          true,
		},
	} {
		r.templates[t.Tipo+"|"+t.Canal] = t
	}
	return r
}

func (r *TemplatesRepo) Get(ctx context.Context, tipo, canal string) (notifications.Template, error) {
	t, ok := r.templates[tipo+"|"+canal]
	if !ok || !t.Activo {
		return notifications.Template{}, notifications.ErrNotFound
	}
	return t, nil
}
