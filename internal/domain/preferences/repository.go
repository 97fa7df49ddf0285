package preferences

import "context"

type Repository interface {
	// GetPreference busca la fila explícita (persona, tipo, canal).
	GetPreference(ctx context.Context, personID, tipo string, canal Channel) (Preference, error)
	// UpsertPreference crea o actualiza respetando la unicidad por tupla.
	UpsertPreference(ctx context.Context, p Preference) error
	ListPreferences(ctx context.Context, personID string) ([]Preference, error)

	GetType(ctx context.Context, nombre string) (TypeEntry, error)
	GetChannel(ctx context.Context, nombre Channel) (ChannelEntry, error)
}

// DeviceRepository persiste dispositivos push. Save es upsert por ID; el
// adapter garantiza la unicidad global del token.
type DeviceRepository interface {
	GetByToken(ctx context.Context, token string) (MobileDevice, error)
	// GetActiveByPerson devuelve el dispositivo activo más recientemente visto.
	GetActiveByPerson(ctx context.Context, personID string) (MobileDevice, error)
	ListByPerson(ctx context.Context, personID string) ([]MobileDevice, error)
	Save(ctx context.Context, d MobileDevice) error
	// DeactivateOthers apaga todos los dispositivos de la persona salvo keepID.
	DeactivateOthers(ctx context.Context, personID, keepID string) error
}
