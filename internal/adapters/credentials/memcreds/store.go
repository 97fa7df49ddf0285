// Package memcreds es un Store de credenciales en memoria para desarrollo
// y tests. Guarda hashes Argon2id, nunca el password en claro.
package memcreds

import (
	"context"
	"strings"
	"sync"

	"dental-clinic-backend/internal/platform/password"
	"dental-clinic-backend/internal/ports/credentials"
)

type Store struct {
	mu     sync.RWMutex
	hashes map[string]string // email normalizado -> hash argon2id
}

func New() *Store {
	return &Store{hashes: make(map[string]string)}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) Create(ctx context.Context, email, pass string) error {
	key := normalize(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hashes[key]; ok {
		return credentials.ErrDuplicateEmail
	}

	hash, err := password.Hash(pass, nil)
	if err != nil {
		return err
	}
	s.hashes[key] = hash
	return nil
}

func (s *Store) Delete(ctx context.Context, email string) error {
	key := normalize(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hashes[key]; !ok {
		return credentials.ErrNotFound
	}
	delete(s.hashes, key)
	return nil
}

func (s *Store) Exists(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.hashes[normalize(email)]
	return ok, nil
}

// Verify comprueba un password contra el hash guardado. No forma parte del
// port de dominio; lo usa el flujo de login del router.
func (s *Store) Verify(ctx context.Context, email, pass string) (bool, error) {
	s.mu.RLock()
	hash, ok := s.hashes[normalize(email)]
	s.mu.RUnlock()

	if !ok {
		return false, credentials.ErrNotFound
	}
	return password.Verify(pass, hash)
}
