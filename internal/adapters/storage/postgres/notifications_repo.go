package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"dental-clinic-backend/internal/domain/notifications"
)

type NotificationsRepo struct {
	db *sql.DB
}

func NewNotificationsRepo(db *sql.DB) *NotificationsRepo {
	return &NotificationsRepo{db: db}
}

const selectNotification = `
	SELECT
		id, usuario_id, tipo, canal, dispositivo_id,
		titulo, mensaje, datos_adicionales, estado,
		created_at, fecha_envio, fecha_enviado, fecha_entregado, fecha_leido,
		error_mensaje, intentos
	FROM historial_notificaciones`

func (r *NotificationsRepo) Create(ctx context.Context, rec notifications.Record) error {
	datos, err := marshalJSON(rec.Datos)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO historial_notificaciones (
			id, usuario_id, tipo, canal, dispositivo_id,
			titulo, mensaje, datos_adicionales, estado,
			created_at, fecha_envio, fecha_enviado, fecha_entregado, fecha_leido,
			error_mensaje, intentos
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		rec.ID, rec.PersonID, rec.Tipo, rec.Canal, nullStringPtr(rec.DeviceID),
		rec.Titulo, rec.Mensaje, datos, string(rec.Estado),
		rec.CreatedAt, rec.ScheduledAt, toNullTime(rec.SentAt),
		toNullTime(rec.DeliveredAt), toNullTime(rec.ReadAt),
		rec.ErrorMensaje, rec.Intentos,
	)
	return err
}

func (r *NotificationsRepo) GetByID(ctx context.Context, id string) (notifications.Record, error) {
	return scanNotification(r.db.QueryRowContext(ctx, selectNotification+` WHERE id = $1`, id))
}

func (r *NotificationsRepo) Update(ctx context.Context, rec notifications.Record) error {
	datos, err := marshalJSON(rec.Datos)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE historial_notificaciones
		SET dispositivo_id = $2,
		    titulo = $3,
		    mensaje = $4,
		    datos_adicionales = $5,
		    estado = $6,
		    fecha_enviado = $7,
		    fecha_entregado = $8,
		    fecha_leido = $9,
		    error_mensaje = $10,
		    intentos = $11
		WHERE id = $1
	`,
		rec.ID, nullStringPtr(rec.DeviceID), rec.Titulo, rec.Mensaje, datos,
		string(rec.Estado), toNullTime(rec.SentAt), toNullTime(rec.DeliveredAt),
		toNullTime(rec.ReadAt), rec.ErrorMensaje, rec.Intentos,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func (r *NotificationsRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]notifications.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectNotification+`
		WHERE estado = $1 AND fecha_envio <= $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
	`, string(notifications.StatusPendiente), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (r *NotificationsRepo) ListByPerson(ctx context.Context, personID string, limit int) ([]notifications.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectNotification+`
		WHERE usuario_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, personID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func scanNotification(row rowScanner) (notifications.Record, error) {
	var rec notifications.Record
	var device sql.NullString
	var datos []byte
	var estado string
	var sent, delivered, read sql.NullTime
	if err := row.Scan(
		&rec.ID, &rec.PersonID, &rec.Tipo, &rec.Canal, &device,
		&rec.Titulo, &rec.Mensaje, &datos, &estado,
		&rec.CreatedAt, &rec.ScheduledAt, &sent, &delivered, &read,
		&rec.ErrorMensaje, &rec.Intentos,
	); err != nil {
		if err == sql.ErrNoRows {
			return notifications.Record{}, notifications.ErrNotFound
		}
		return notifications.Record{}, err
	}

	if device.Valid {
		rec.DeviceID = &device.String
	}
	rec.Estado = notifications.Status(estado)
	rec.SentAt = fromNullTime(sent)
	rec.DeliveredAt = fromNullTime(delivered)
	rec.ReadAt = fromNullTime(read)

	m, err := unmarshalJSON(datos)
	if err != nil {
		return notifications.Record{}, err
	}
	rec.Datos = m
	return rec, nil
}

func collectNotifications(rows *sql.Rows) ([]notifications.Record, error) {
	out := make([]notifications.Record, 0)
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// TemplatesRepo lee plantillas activas por (tipo, canal).
type TemplatesRepo struct {
	db *sql.DB
}

func NewTemplatesRepo(db *sql.DB) *TemplatesRepo {
	return &TemplatesRepo{db: db}
}

func (r *TemplatesRepo) Get(ctx context.Context, tipo, canal string) (notifications.Template, error) {
	var t notifications.Template
	var vars []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nombre, tipo, canal, asunto_template, titulo_template,
		       mensaje_template, variables, activo
		FROM plantillas_notificacion
		WHERE tipo = $1 AND canal = $2 AND activo
	`, tipo, canal).Scan(
		&t.ID, &t.Nombre, &t.Tipo, &t.Canal, &t.AsuntoTemplate,
		&t.TituloTemplate, &t.MensajeTemplate, &vars, &t.Activo,
	)
	if err == sql.ErrNoRows {
		return notifications.Template{}, notifications.ErrNotFound
	}
	if err != nil {
		return notifications.Template{}, err
	}

	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &t.Variables); err != nil {
			return notifications.Template{}, err
		}
	}
	return t, nil
}
