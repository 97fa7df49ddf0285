package credentials

import (
	"context"
	"errors"
)

var (
	ErrDuplicateEmail = errors.New("credential email already exists")
	ErrNotFound       = errors.New("credential not found")
)

// Store es la capa de credenciales de autenticación (externa al dominio).
// El dominio nunca maneja hashing ni almacenamiento de passwords directamente.
// Delete existe para compensar un registro a medio camino (rollback).
type Store interface {
	Create(ctx context.Context, email, password string) error
	Delete(ctx context.Context, email string) error
	Exists(ctx context.Context, email string) (bool, error)
}
