package postgres

import (
	"context"
	"database/sql"

	"dental-clinic-backend/internal/domain/audit"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, e audit.Entry) error {
	datos, err := marshalJSON(e.Datos)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bitacora (
			id, accion, descripcion, actor_id,
			ip_address, user_agent, entidad, entidad_id,
			datos_adicionales, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		e.ID, e.Accion, e.Descripcion, nullStringPtr(e.ActorID),
		e.IPAddress, e.UserAgent, e.Entidad, e.EntidadID,
		datos, e.CreatedAt,
	)
	return err
}

func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, accion, descripcion, actor_id,
			ip_address, user_agent, entidad, entidad_id,
			datos_adicionales, created_at
		FROM bitacora
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		var actor sql.NullString
		var datos []byte
		if err := rows.Scan(
			&e.ID, &e.Accion, &e.Descripcion, &actor,
			&e.IPAddress, &e.UserAgent, &e.Entidad, &e.EntidadID,
			&datos, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if actor.Valid {
			e.ActorID = &actor.String
		}
		m, err := unmarshalJSON(datos)
		if err != nil {
			return nil, err
		}
		e.Datos = m
		out = append(out, e)
	}
	return out, rows.Err()
}
