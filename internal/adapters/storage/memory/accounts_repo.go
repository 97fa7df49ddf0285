// Package memory implementa los repositorios del dominio sobre mapas en
// memoria. Es el backend por defecto cuando no hay DB_DSN configurado;
// también lo usan los tests de integración del router.
package memory

import (
	"context"
	"strings"
	"sync"

	"dental-clinic-backend/internal/domain/accounts"
)

type AccountsRepo struct {
	mu       sync.RWMutex
	people   map[string]accounts.Person  // id -> persona
	profiles map[string]accounts.Profile // personID -> perfil
}

func NewAccountsRepo() *AccountsRepo {
	return &AccountsRepo{
		people:   make(map[string]accounts.Person),
		profiles: make(map[string]accounts.Profile),
	}
}

func (r *AccountsRepo) CreateWithProfile(ctx context.Context, p accounts.Person, prof accounts.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.people {
		if strings.EqualFold(existing.Email, p.Email) {
			return accounts.ErrDuplicateEmail
		}
	}
	if err := r.checkProfileUniques(prof, p.ID); err != nil {
		return err
	}

	r.people[p.ID] = p
	r.profiles[p.ID] = prof
	return nil
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (accounts.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.people[id]
	if !ok {
		return accounts.Person{}, accounts.ErrNotFound
	}
	return p, nil
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (accounts.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.people {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return accounts.Person{}, accounts.ErrNotFound
}

func (r *AccountsRepo) GetProfile(ctx context.Context, personID string) (accounts.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.people[personID]; !ok {
		return accounts.Profile{}, accounts.ErrNotFound
	}
	return r.profiles[personID], nil
}

func (r *AccountsRepo) SwapRole(ctx context.Context, personID string, newRole accounts.Role, prof accounts.Profile) (accounts.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.people[personID]
	if !ok {
		return accounts.Person{}, accounts.ErrNotFound
	}

	// La democión del último administrador se rechaza acá, bajo el lock,
	// para que dos demociones concurrentes no dejen cero administradores.
	if p.Role == accounts.RoleAdministrador && newRole != accounts.RoleAdministrador {
		otros := 0
		for id, other := range r.people {
			if id != personID && other.Role == accounts.RoleAdministrador {
				otros++
			}
		}
		if otros == 0 {
			return accounts.Person{}, accounts.ErrLastAdministrator
		}
	}

	if err := r.checkProfileUniques(prof, personID); err != nil {
		return accounts.Person{}, err
	}

	p.Role = newRole
	r.people[personID] = p
	r.profiles[personID] = prof
	return p, nil
}

func (r *AccountsRepo) CountByRole(ctx context.Context, role accounts.Role) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.people {
		if p.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *AccountsRepo) UpdateNotificationSettings(ctx context.Context, personID string, s accounts.NotificationSettings) (accounts.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.people[personID]
	if !ok {
		return accounts.Person{}, accounts.ErrNotFound
	}
	p.RecibirNotificaciones = s.RecibirNotificaciones
	p.RecibirEmail = s.RecibirEmail
	p.RecibirPush = s.RecibirPush
	r.people[personID] = p
	return p, nil
}

// checkProfileUniques valida carnet y matrícula contra el resto de perfiles.
// Se llama con el lock tomado.
func (r *AccountsRepo) checkProfileUniques(prof accounts.Profile, selfID string) error {
	for id, other := range r.profiles {
		if id == selfID {
			continue
		}
		if prof.Paciente != nil && other.Paciente != nil &&
			other.Paciente.CarnetIdentidad == prof.Paciente.CarnetIdentidad {
			return accounts.ErrDuplicateNationalID
		}
		if prof.Odontologo != nil && other.Odontologo != nil &&
			prof.Odontologo.NroMatricula != "" &&
			other.Odontologo.NroMatricula == prof.Odontologo.NroMatricula {
			return accounts.ErrDuplicateLicense
		}
	}
	return nil
}
