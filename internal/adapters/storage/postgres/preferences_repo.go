package postgres

import (
	"context"
	"database/sql"

	"dental-clinic-backend/internal/domain/preferences"
)

type PreferencesRepo struct {
	db *sql.DB
}

func NewPreferencesRepo(db *sql.DB) *PreferencesRepo {
	return &PreferencesRepo{db: db}
}

func (r *PreferencesRepo) GetPreference(ctx context.Context, personID, tipo string, canal preferences.Channel) (preferences.Preference, error) {
	var p preferences.Preference
	var c string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, usuario_id, tipo, canal, activo, created_at, updated_at
		FROM preferencias_notificacion
		WHERE usuario_id = $1 AND tipo = $2 AND canal = $3
	`, personID, tipo, string(canal)).Scan(
		&p.ID, &p.PersonID, &p.Tipo, &c, &p.Activo, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return preferences.Preference{}, preferences.ErrNotFound
	}
	p.Canal = preferences.Channel(c)
	return p, err
}

func (r *PreferencesRepo) UpsertPreference(ctx context.Context, p preferences.Preference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferencias_notificacion (
			id, usuario_id, tipo, canal, activo, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (usuario_id, tipo, canal)
		DO UPDATE SET activo = EXCLUDED.activo, updated_at = EXCLUDED.updated_at
	`, p.ID, p.PersonID, p.Tipo, string(p.Canal), p.Activo, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PreferencesRepo) ListPreferences(ctx context.Context, personID string) ([]preferences.Preference, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, usuario_id, tipo, canal, activo, created_at, updated_at
		FROM preferencias_notificacion
		WHERE usuario_id = $1
		ORDER BY tipo ASC, canal ASC
	`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]preferences.Preference, 0)
	for rows.Next() {
		var p preferences.Preference
		var c string
		if err := rows.Scan(&p.ID, &p.PersonID, &p.Tipo, &c, &p.Activo, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Canal = preferences.Channel(c)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PreferencesRepo) GetType(ctx context.Context, nombre string) (preferences.TypeEntry, error) {
	var t preferences.TypeEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT nombre, descripcion, activo FROM tipos_notificacion WHERE nombre = $1
	`, nombre).Scan(&t.Nombre, &t.Descripcion, &t.Activo)
	if err == sql.ErrNoRows {
		return preferences.TypeEntry{}, preferences.ErrNotFound
	}
	return t, err
}

func (r *PreferencesRepo) GetChannel(ctx context.Context, nombre preferences.Channel) (preferences.ChannelEntry, error) {
	var c preferences.ChannelEntry
	var n string
	err := r.db.QueryRowContext(ctx, `
		SELECT nombre, descripcion, activo FROM canales_notificacion WHERE nombre = $1
	`, string(nombre)).Scan(&n, &c.Descripcion, &c.Activo)
	if err == sql.ErrNoRows {
		return preferences.ChannelEntry{}, preferences.ErrNotFound
	}
	c.Nombre = preferences.Channel(n)
	return c, err
}

type DevicesRepo struct {
	db *sql.DB
}

func NewDevicesRepo(db *sql.DB) *DevicesRepo {
	return &DevicesRepo{db: db}
}

const selectDevice = `
	SELECT
		id, usuario_id, token_fcm, plataforma, modelo, version_app,
		activo, fecha_registro, ultima_actividad
	FROM dispositivos_moviles`

func (r *DevicesRepo) GetByToken(ctx context.Context, token string) (preferences.MobileDevice, error) {
	return scanDevice(r.db.QueryRowContext(ctx, selectDevice+` WHERE token_fcm = $1`, token))
}

func (r *DevicesRepo) GetActiveByPerson(ctx context.Context, personID string) (preferences.MobileDevice, error) {
	return scanDevice(r.db.QueryRowContext(ctx, selectDevice+`
		WHERE usuario_id = $1 AND activo
		ORDER BY ultima_actividad DESC
		LIMIT 1
	`, personID))
}

func (r *DevicesRepo) ListByPerson(ctx context.Context, personID string) ([]preferences.MobileDevice, error) {
	rows, err := r.db.QueryContext(ctx, selectDevice+`
		WHERE usuario_id = $1
		ORDER BY fecha_registro ASC
	`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]preferences.MobileDevice, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Save es upsert por ID. El token es único global: primero se le quita a
// cualquier otro dispositivo que lo tenga.
func (r *DevicesRepo) Save(ctx context.Context, d preferences.MobileDevice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE dispositivos_moviles
		SET token_fcm = NULL, activo = false
		WHERE token_fcm = $1 AND id <> $2
	`, d.Token, d.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dispositivos_moviles (
			id, usuario_id, token_fcm, plataforma, modelo, version_app,
			activo, fecha_registro, ultima_actividad
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			usuario_id = EXCLUDED.usuario_id,
			token_fcm = EXCLUDED.token_fcm,
			plataforma = EXCLUDED.plataforma,
			modelo = EXCLUDED.modelo,
			version_app = EXCLUDED.version_app,
			activo = EXCLUDED.activo,
			ultima_actividad = EXCLUDED.ultima_actividad
	`, d.ID, d.PersonID, d.Token, d.Plataforma, d.Modelo, d.VersionApp,
		d.Activo, d.FechaRegistro, d.UltimaActividad); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *DevicesRepo) DeactivateOthers(ctx context.Context, personID, keepID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dispositivos_moviles
		SET activo = false
		WHERE usuario_id = $1 AND id <> $2 AND activo
	`, personID, keepID)
	return err
}

func scanDevice(row rowScanner) (preferences.MobileDevice, error) {
	var d preferences.MobileDevice
	var token sql.NullString
	if err := row.Scan(
		&d.ID, &d.PersonID, &token, &d.Plataforma, &d.Modelo, &d.VersionApp,
		&d.Activo, &d.FechaRegistro, &d.UltimaActividad,
	); err != nil {
		if err == sql.ErrNoRows {
			return preferences.MobileDevice{}, preferences.ErrNotFound
		}
		return preferences.MobileDevice{}, err
	}
	d.Token = token.String
	return d, nil
}
