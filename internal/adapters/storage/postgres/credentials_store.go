package postgres

import (
	"context"
	"database/sql"

	"dental-clinic-backend/internal/platform/password"
	"dental-clinic-backend/internal/ports/credentials"
)

// CredentialsStore guarda credenciales con hash Argon2id en Postgres.
type CredentialsStore struct {
	db *sql.DB
}

func NewCredentialsStore(db *sql.DB) *CredentialsStore {
	return &CredentialsStore{db: db}
}

func (s *CredentialsStore) Create(ctx context.Context, email, pass string) error {
	hash, err := password.Hash(pass, nil)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credenciales (email, password_hash, created_at)
		VALUES (lower($1), $2, now())
	`, email, hash)
	if _, ok := uniqueViolation(err); ok {
		return credentials.ErrDuplicateEmail
	}
	return err
}

func (s *CredentialsStore) Delete(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM credenciales WHERE email = lower($1)
	`, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return credentials.ErrNotFound
	}
	return nil
}

func (s *CredentialsStore) Exists(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT true FROM credenciales WHERE email = lower($1)
	`, email).Scan(&ok)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return ok, err
}

// Verify comprueba un password contra el hash guardado.
func (s *CredentialsStore) Verify(ctx context.Context, email, pass string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT password_hash FROM credenciales WHERE email = lower($1)
	`, email).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, credentials.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return password.Verify(pass, hash)
}
