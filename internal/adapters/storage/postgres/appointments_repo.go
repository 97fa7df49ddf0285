package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"dental-clinic-backend/internal/domain/appointments"
)

type AppointmentsRepo struct {
	db *sql.DB
}

func NewAppointmentsRepo(db *sql.DB) *AppointmentsRepo {
	return &AppointmentsRepo{db: db}
}

const selectAppointment = `
	SELECT
		id, fecha, horario_id,
		paciente_id, odontologo_id, recepcionista_id,
		tipo_consulta_id, estado, version,
		created_at, updated_at
	FROM consultas`

func (r *AppointmentsRepo) Create(ctx context.Context, a appointments.Appointment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consultas (
			id, fecha, horario_id,
			paciente_id, odontologo_id, recepcionista_id,
			tipo_consulta_id, estado, version,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		a.ID, a.Fecha, a.SlotID,
		a.PatientID, toNullString(a.DentistID), toNullString(a.ReceptionistID),
		a.TypeID, string(a.Status), a.Version,
		a.CreatedAt, a.UpdatedAt,
	)
	return translateSlotUnique(err)
}

// translateSlotUnique mapea la violación del índice único parcial
// uq_consultas_franja_activa (fecha, horario_id, odontologo_id) WHERE
// estado <> 'cancelada'. Es el índice, no un chequeo previo, quien arbitra
// dos inserts concurrentes sobre la misma franja.
func translateSlotUnique(err error) error {
	if c, ok := uniqueViolation(err); ok && strings.Contains(c, "franja") {
		return appointments.ErrSlotConflict
	}
	return err
}

func (r *AppointmentsRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return appointments.Appointment{}, appointments.ErrNotFound
	}
	return scanAppointment(r.db.QueryRowContext(ctx, selectAppointment+` WHERE id = $1`, id))
}

// Update persiste solo si la versión en base coincide con a.Version.
// El WHERE con version hace el chequeo y el incremento en un solo statement.
func (r *AppointmentsRepo) Update(ctx context.Context, a appointments.Appointment) (appointments.Appointment, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE consultas
		SET fecha = $2,
		    horario_id = $3,
		    odontologo_id = $4,
		    recepcionista_id = $5,
		    tipo_consulta_id = $6,
		    estado = $7,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $1 AND version = $9
		RETURNING
			id, fecha, horario_id,
			paciente_id, odontologo_id, recepcionista_id,
			tipo_consulta_id, estado, version,
			created_at, updated_at
	`,
		a.ID, a.Fecha, a.SlotID,
		toNullString(a.DentistID), toNullString(a.ReceptionistID),
		a.TypeID, string(a.Status), a.UpdatedAt, a.Version,
	)

	updated, err := scanAppointment(row)
	if err == appointments.ErrNotFound {
		// Distinguir fila inexistente de versión vieja.
		var exists bool
		if qerr := r.db.QueryRowContext(ctx, `
			SELECT true FROM consultas WHERE id = $1
		`, a.ID).Scan(&exists); qerr == nil {
			return appointments.Appointment{}, appointments.ErrVersionConflict
		}
		return appointments.Appointment{}, appointments.ErrNotFound
	}
	if err != nil {
		return appointments.Appointment{}, translateSlotUnique(err)
	}
	return updated, nil
}

func (r *AppointmentsRepo) ListByPatient(ctx context.Context, patientID string) ([]appointments.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, selectAppointment+`
		WHERE paciente_id = $1
		ORDER BY fecha ASC, id ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentsRepo) FindActive(ctx context.Context, fecha time.Time, slotID, dentistID string) (appointments.Appointment, error) {
	return scanAppointment(r.db.QueryRowContext(ctx, selectAppointment+`
		WHERE fecha = $1
		  AND horario_id = $2
		  AND odontologo_id = $3
		  AND estado <> $4
		LIMIT 1
	`, fecha, slotID, dentistID, string(appointments.StatusCancelada)))
}

func (r *AppointmentsRepo) ListByStatuses(ctx context.Context, statuses ...appointments.Status) ([]appointments.Appointment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(statuses))
	marks := make([]string, 0, len(statuses))
	for i, s := range statuses {
		args = append(args, string(s))
		marks = append(marks, "$"+strconv.Itoa(i+1))
	}

	rows, err := r.db.QueryContext(ctx, selectAppointment+`
		WHERE estado IN (`+strings.Join(marks, ",")+`)
		ORDER BY fecha ASC, id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func scanAppointment(row rowScanner) (appointments.Appointment, error) {
	var a appointments.Appointment
	var dentist, recep sql.NullString
	var estado string
	if err := row.Scan(
		&a.ID, &a.Fecha, &a.SlotID,
		&a.PatientID, &dentist, &recep,
		&a.TypeID, &estado, &a.Version,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return appointments.Appointment{}, appointments.ErrNotFound
		}
		return appointments.Appointment{}, err
	}
	a.DentistID = dentist.String
	a.ReceptionistID = recep.String
	a.Status = appointments.Status(estado)
	return a, nil
}

func collectAppointments(rows *sql.Rows) ([]appointments.Appointment, error) {
	out := make([]appointments.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SlotsRepo lee el catálogo de horarios.
type SlotsRepo struct {
	db *sql.DB
}

func NewSlotsRepo(db *sql.DB) *SlotsRepo {
	return &SlotsRepo{db: db}
}

func (r *SlotsRepo) GetByID(ctx context.Context, id string) (appointments.Slot, error) {
	var s appointments.Slot
	err := r.db.QueryRowContext(ctx, `
		SELECT id, hora FROM horarios WHERE id = $1
	`, id).Scan(&s.ID, &s.Hora)
	if err == sql.ErrNoRows {
		return appointments.Slot{}, appointments.ErrNotFound
	}
	return s, err
}

func (r *SlotsRepo) List(ctx context.Context) ([]appointments.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hora FROM horarios ORDER BY hora ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]appointments.Slot, 0)
	for rows.Next() {
		var s appointments.Slot
		if err := rows.Scan(&s.ID, &s.Hora); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TypesRepo lee el catálogo de tipos de consulta.
type TypesRepo struct {
	db *sql.DB
}

func NewTypesRepo(db *sql.DB) *TypesRepo {
	return &TypesRepo{db: db}
}

func (r *TypesRepo) GetByID(ctx context.Context, id string) (appointments.ConsultationType, error) {
	var t appointments.ConsultationType
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nombre FROM tipos_consulta WHERE id = $1
	`, id).Scan(&t.ID, &t.Nombre)
	if err == sql.ErrNoRows {
		return appointments.ConsultationType{}, appointments.ErrNotFound
	}
	return t, err
}

func (r *TypesRepo) List(ctx context.Context) ([]appointments.ConsultationType, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, nombre FROM tipos_consulta ORDER BY nombre ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]appointments.ConsultationType, 0)
	for rows.Next() {
		var t appointments.ConsultationType
		if err := rows.Scan(&t.ID, &t.Nombre); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
