package preferences

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"dental-clinic-backend/internal/platform/logger"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Directory expone los toggles gruesos de la Person. Lo implementa el
// directorio de cuentas.
type Directory interface {
	NotificationToggles(ctx context.Context, personID string) (notificaciones, email, push bool, err error)
}

type Service struct {
	repo      Repository
	devices   DeviceRepository
	directory Directory
	log       logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, devices DeviceRepository, directory Directory, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		devices:   devices,
		directory: directory,
		log:       log,
		now:       time.Now,
	}
}

// ShouldSend decide si corresponde enviar una notificación de tipo/canal a
// la persona. Precedencia:
//  1. toggle grueso por canal apagado => no, sin mirar nada más
//  2. fila explícita (persona, tipo, canal) => su flag manda
//  3. sin fila => sí (modelo opt-out), salvo tipo o canal inactivos en catálogo
func (s *Service) ShouldSend(ctx context.Context, personID, tipo string, canal Channel) (bool, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" || strings.TrimSpace(tipo) == "" || !canal.Valid() {
		return false, ErrInvalidInput
	}

	notificaciones, email, push, err := s.directory.NotificationToggles(ctx, personID)
	if err != nil {
		return false, err
	}
	if !notificaciones {
		return false, nil
	}
	if canal == ChannelEmail && !email {
		return false, nil
	}
	if canal == ChannelPush && !push {
		return false, nil
	}

	if pref, err := s.repo.GetPreference(ctx, personID, tipo, canal); err == nil {
		return pref.Activo, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	// Catálogos: solo un inactivo explícito bloquea; entradas ausentes se
	// tratan como activas (los catálogos se cargan perezosamente).
	if t, err := s.repo.GetType(ctx, tipo); err == nil && !t.Activo {
		return false, nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if c, err := s.repo.GetChannel(ctx, canal); err == nil && !c.Activo {
		return false, nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	return true, nil
}

// SetPreference fija la fila explícita (persona, tipo, canal).
func (s *Service) SetPreference(ctx context.Context, personID, tipo string, canal Channel, activo bool) (Preference, error) {
	personID = strings.TrimSpace(personID)
	tipo = strings.TrimSpace(tipo)
	if personID == "" || tipo == "" || !canal.Valid() {
		return Preference{}, ErrInvalidInput
	}

	now := s.now()
	p, err := s.repo.GetPreference(ctx, personID, tipo, canal)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Preference{}, err
		}
		p = Preference{
			ID:        uuid.NewString(),
			PersonID:  personID,
			Tipo:      tipo,
			Canal:     canal,
			CreatedAt: now,
		}
	}

	p.Activo = activo
	p.UpdatedAt = now

	if err := s.repo.UpsertPreference(ctx, p); err != nil {
		return Preference{}, err
	}
	return p, nil
}

func (s *Service) ListPreferences(ctx context.Context, personID string) ([]Preference, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListPreferences(ctx, personID)
}

type RegisterDeviceInput struct {
	PersonID   string
	Token      string
	Plataforma string
	Modelo     string
	VersionApp string
}

// RegisterDevice registra (o recicla) el dispositivo push de la persona y
// deja a lo sumo uno activo:
//   - token ya existente en cualquier registro => se reasigna a esta persona
//   - si no, se recicla el primer dispositivo de la persona o se crea uno
//   - al final se desactiva cualquier otro dispositivo de la persona
func (s *Service) RegisterDevice(ctx context.Context, in RegisterDeviceInput) (MobileDevice, bool, error) {
	personID := strings.TrimSpace(in.PersonID)
	token := strings.TrimSpace(in.Token)
	if personID == "" || token == "" {
		return MobileDevice{}, false, ErrInvalidInput
	}

	plataforma := strings.ToLower(strings.TrimSpace(in.Plataforma))
	if plataforma == "" {
		plataforma = "android"
	}

	now := s.now()
	created := false

	d, err := s.devices.GetByToken(ctx, token)
	switch {
	case err == nil:
		// El token manda: reasignar al usuario actual y reactivar.
		d.PersonID = personID
		d.Plataforma = plataforma
		if m := strings.TrimSpace(in.Modelo); m != "" {
			d.Modelo = m
		}
		if v := strings.TrimSpace(in.VersionApp); v != "" {
			d.VersionApp = v
		}
		d.Activo = true
		d.UltimaActividad = now

	case errors.Is(err, ErrNotFound):
		// Reciclar el primer dispositivo de la persona si existe.
		existing, lerr := s.devices.ListByPerson(ctx, personID)
		if lerr != nil {
			return MobileDevice{}, false, lerr
		}
		if len(existing) > 0 {
			d = existing[0]
			d.Token = token
			d.Plataforma = plataforma
			if m := strings.TrimSpace(in.Modelo); m != "" {
				d.Modelo = m
			}
			if v := strings.TrimSpace(in.VersionApp); v != "" {
				d.VersionApp = v
			}
			d.Activo = true
			d.UltimaActividad = now
		} else {
			d = MobileDevice{
				ID:              uuid.NewString(),
				PersonID:        personID,
				Token:           token,
				Plataforma:      plataforma,
				Modelo:          strings.TrimSpace(in.Modelo),
				VersionApp:      strings.TrimSpace(in.VersionApp),
				Activo:          true,
				FechaRegistro:   now,
				UltimaActividad: now,
			}
			created = true
		}

	default:
		return MobileDevice{}, false, err
	}

	if err := s.devices.Save(ctx, d); err != nil {
		return MobileDevice{}, false, err
	}
	if err := s.devices.DeactivateOthers(ctx, personID, d.ID); err != nil {
		return MobileDevice{}, false, err
	}

	return d, created, nil
}

// ActiveDevice devuelve el ID y token del único dispositivo activo de la
// persona (el visto más recientemente). Para el dispatcher de push.
func (s *Service) ActiveDevice(ctx context.Context, personID string) (deviceID, token string, err error) {
	d, err := s.devices.GetActiveByPerson(ctx, personID)
	if err != nil {
		return "", "", err
	}
	return d.ID, d.Token, nil
}
