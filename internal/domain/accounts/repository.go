package accounts

import "context"

// Repository persiste Person y su perfil subtipo. Las operaciones compuestas
// (alta con perfil, cambio de rol) deben ser atómicas: el adapter las ejecuta
// dentro de una única transacción y traduce violaciones de unicidad a los
// errores del dominio (ErrDuplicateEmail, ErrDuplicateNationalID, ErrDuplicateLicense).
type Repository interface {
	// CreateWithProfile crea la Person y su perfil (si el rol lo lleva) como
	// una unidad. prof.Kind == ProfileNone para administradores.
	CreateWithProfile(ctx context.Context, p Person, prof Profile) error

	GetByID(ctx context.Context, id string) (Person, error)
	// GetByEmail busca por email con comparación case-insensitive.
	GetByEmail(ctx context.Context, email string) (Person, error)

	GetProfile(ctx context.Context, personID string) (Profile, error)

	// SwapRole borra el perfil anterior, crea el nuevo y actualiza el rol,
	// todo en una transacción. Un sync a medias es una violación de corrección.
	// Demover al último administrador falla con ErrLastAdministrator; el
	// chequeo vive dentro de la misma transacción para que dos demociones
	// concurrentes no dejen cero administradores.
	SwapRole(ctx context.Context, personID string, newRole Role, prof Profile) (Person, error)

	CountByRole(ctx context.Context, role Role) (int, error)

	UpdateNotificationSettings(ctx context.Context, personID string, s NotificationSettings) (Person, error)
}
