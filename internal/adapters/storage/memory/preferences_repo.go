package memory

import (
	"context"
	"sort"
	"sync"

	"dental-clinic-backend/internal/domain/preferences"
)

type PreferencesRepo struct {
	mu    sync.RWMutex
	prefs map[string]preferences.Preference // (personID|tipo|canal) -> fila

	types    map[string]preferences.TypeEntry
	channels map[preferences.Channel]preferences.ChannelEntry
}

func NewPreferencesRepo() *PreferencesRepo {
	r := &PreferencesRepo{
		prefs:    make(map[string]preferences.Preference),
		types:    make(map[string]preferences.TypeEntry),
		channels: make(map[preferences.Channel]preferences.ChannelEntry),
	}

	for _, t := range []preferences.TypeEntry{
		{Nombre: preferences.TipoConfirmacionCita, Descripcion: "Confirmación de cita agendada", Activo: true},
		{Nombre: preferences.TipoRecordatorioCita, Descripcion: "Recordatorio previo a la cita", Activo: true},
		{Nombre: preferences.TipoCambioCita, Descripcion: "Cambio o cancelación de cita", Activo: true},
	} {
		r.types[t.Nombre] = t
	}
	for _, c := range []preferences.ChannelEntry{
		{Nombre: preferences.ChannelEmail, Descripcion: "Correo electrónico", Activo: true},
		{Nombre: preferences.ChannelPush, Descripcion: "Notificación push", Activo: true},
		{Nombre: preferences.ChannelSMS, Descripcion: "Mensaje de texto", Activo: false},
		{Nombre: preferences.ChannelWhatsapp, Descripcion: "WhatsApp", Activo: false},
	} {
		r.channels[c.Nombre] = c
	}
	return r
}

func prefKey(personID, tipo string, canal preferences.Channel) string {
	return personID + "|" + tipo + "|" + string(canal)
}

func (r *PreferencesRepo) GetPreference(ctx context.Context, personID, tipo string, canal preferences.Channel) (preferences.Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.prefs[prefKey(personID, tipo, canal)]
	if !ok {
		return preferences.Preference{}, preferences.ErrNotFound
	}
	return p, nil
}

func (r *PreferencesRepo) UpsertPreference(ctx context.Context, p preferences.Preference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := prefKey(p.PersonID, p.Tipo, p.Canal)
	if existing, ok := r.prefs[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	r.prefs[key] = p
	return nil
}

func (r *PreferencesRepo) ListPreferences(ctx context.Context, personID string) ([]preferences.Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []preferences.Preference
	for _, p := range r.prefs {
		if p.PersonID == personID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tipo != out[j].Tipo {
			return out[i].Tipo < out[j].Tipo
		}
		return out[i].Canal < out[j].Canal
	})
	return out, nil
}

func (r *PreferencesRepo) GetType(ctx context.Context, nombre string) (preferences.TypeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[nombre]
	if !ok {
		return preferences.TypeEntry{}, preferences.ErrNotFound
	}
	return t, nil
}

func (r *PreferencesRepo) GetChannel(ctx context.Context, nombre preferences.Channel) (preferences.ChannelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.channels[nombre]
	if !ok {
		return preferences.ChannelEntry{}, preferences.ErrNotFound
	}
	return c, nil
}

type DevicesRepo struct {
	mu      sync.RWMutex
	devices map[string]preferences.MobileDevice // id -> dispositivo
}

func NewDevicesRepo() *DevicesRepo {
	return &DevicesRepo{devices: make(map[string]preferences.MobileDevice)}
}

func (r *DevicesRepo) GetByToken(ctx context.Context, token string) (preferences.MobileDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.Token == token {
			return d, nil
		}
	}
	return preferences.MobileDevice{}, preferences.ErrNotFound
}

func (r *DevicesRepo) GetActiveByPerson(ctx context.Context, personID string) (preferences.MobileDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best preferences.MobileDevice
	found := false
	for _, d := range r.devices {
		if d.PersonID != personID || !d.Activo {
			continue
		}
		if !found || d.UltimaActividad.After(best.UltimaActividad) {
			best = d
			found = true
		}
	}
	if !found {
		return preferences.MobileDevice{}, preferences.ErrNotFound
	}
	return best, nil
}

func (r *DevicesRepo) ListByPerson(ctx context.Context, personID string) ([]preferences.MobileDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []preferences.MobileDevice
	for _, d := range r.devices {
		if d.PersonID == personID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FechaRegistro.Before(out[j].FechaRegistro)
	})
	return out, nil
}

func (r *DevicesRepo) Save(ctx context.Context, d preferences.MobileDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Unicidad global del token: ningún otro dispositivo puede conservarlo.
	for id, other := range r.devices {
		if id != d.ID && other.Token == d.Token {
			other.Token = ""
			other.Activo = false
			r.devices[id] = other
		}
	}
	r.devices[d.ID] = d
	return nil
}

func (r *DevicesRepo) DeactivateOthers(ctx context.Context, personID, keepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, d := range r.devices {
		if d.PersonID == personID && id != keepID && d.Activo {
			d.Activo = false
			r.devices[id] = d
		}
	}
	return nil
}
