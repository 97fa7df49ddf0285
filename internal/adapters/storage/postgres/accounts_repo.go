package postgres

import (
	"context"
	"database/sql"
	"strings"

	"dental-clinic-backend/internal/domain/accounts"
)

type AccountsRepo struct {
	db *sql.DB
}

func NewAccountsRepo(db *sql.DB) *AccountsRepo {
	return &AccountsRepo{db: db}
}

func (r *AccountsRepo) CreateWithProfile(ctx context.Context, p accounts.Person, prof accounts.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usuarios (
			id, nombre, apellido, email, telefono, sexo, rol,
			recibir_notificaciones, recibir_email, recibir_push,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID, p.Nombre, p.Apellido, p.Email, p.Telefono, p.Sexo, string(p.Role),
		p.RecibirNotificaciones, p.RecibirEmail, p.RecibirPush,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return translateAccountsUnique(err)
	}

	if err := insertProfile(ctx, tx, p.ID, prof); err != nil {
		return translateAccountsUnique(err)
	}

	return tx.Commit()
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (accounts.Person, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accounts.Person{}, accounts.ErrNotFound
	}
	return scanPerson(r.db.QueryRowContext(ctx, selectPerson+` WHERE id = $1`, id))
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (accounts.Person, error) {
	return scanPerson(r.db.QueryRowContext(ctx, selectPerson+` WHERE lower(email) = lower($1)`, email))
}

func (r *AccountsRepo) GetProfile(ctx context.Context, personID string) (accounts.Profile, error) {
	p, err := r.GetByID(ctx, personID)
	if err != nil {
		return accounts.Profile{}, err
	}

	prof := accounts.Profile{Kind: accounts.KindForRole(p.Role)}
	switch prof.Kind {
	case accounts.ProfilePaciente:
		var pp accounts.PatientProfile
		var fn sql.NullTime
		err = r.db.QueryRowContext(ctx, `
			SELECT usuario_id, carnet_identidad, fecha_nacimiento, direccion
			FROM pacientes WHERE usuario_id = $1
		`, personID).Scan(&pp.PersonID, &pp.CarnetIdentidad, &fn, &pp.Direccion)
		if err != nil {
			break
		}
		pp.FechaNacimiento = fromNullTime(fn)
		prof.Paciente = &pp
	case accounts.ProfileOdontologo:
		var dp accounts.DentistProfile
		err = r.db.QueryRowContext(ctx, `
			SELECT usuario_id, especialidad, experiencia_profesional, nro_matricula
			FROM odontologos WHERE usuario_id = $1
		`, personID).Scan(&dp.PersonID, &dp.Especialidad, &dp.ExperienciaProfesional, &dp.NroMatricula)
		if err != nil {
			break
		}
		prof.Odontologo = &dp
	case accounts.ProfileRecepcionista:
		var rp accounts.ReceptionistProfile
		err = r.db.QueryRowContext(ctx, `
			SELECT usuario_id, habilidades_software
			FROM recepcionistas WHERE usuario_id = $1
		`, personID).Scan(&rp.PersonID, &rp.HabilidadesSoftware)
		if err != nil {
			break
		}
		prof.Recepcionista = &rp
	default:
		return prof, nil
	}

	if err != nil {
		if err == sql.ErrNoRows {
			// Rol con perfil pero sin fila subtipo: inconsistencia de datos.
			return accounts.Profile{}, accounts.ErrNotFound
		}
		return accounts.Profile{}, err
	}
	return prof, nil
}

func (r *AccountsRepo) SwapRole(ctx context.Context, personID string, newRole accounts.Role, prof accounts.Profile) (accounts.Person, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return accounts.Person{}, err
	}
	defer tx.Rollback()

	// Lock de la fila para serializar cambios de rol concurrentes.
	var rolActual string
	if err := tx.QueryRowContext(ctx, `
		SELECT rol FROM usuarios WHERE id = $1 FOR UPDATE
	`, personID).Scan(&rolActual); err != nil {
		if err == sql.ErrNoRows {
			return accounts.Person{}, accounts.ErrNotFound
		}
		return accounts.Person{}, err
	}

	// Al demover un administrador, lockear las filas de los demás admins
	// dentro de la misma transacción: dos demociones concurrentes quedan
	// serializadas y la segunda ve el conteo ya actualizado.
	if rolActual == string(accounts.RoleAdministrador) && newRole != accounts.RoleAdministrador {
		var otros int
		if err := tx.QueryRowContext(ctx, `
			SELECT count(*) FROM (
				SELECT id FROM usuarios
				WHERE rol = $1 AND id <> $2
				FOR UPDATE
			) admins
		`, string(accounts.RoleAdministrador), personID).Scan(&otros); err != nil {
			return accounts.Person{}, err
		}
		if otros == 0 {
			return accounts.Person{}, accounts.ErrLastAdministrator
		}
	}

	for _, q := range []string{
		`DELETE FROM pacientes WHERE usuario_id = $1`,
		`DELETE FROM odontologos WHERE usuario_id = $1`,
		`DELETE FROM recepcionistas WHERE usuario_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, personID); err != nil {
			return accounts.Person{}, err
		}
	}

	if err := insertProfile(ctx, tx, personID, prof); err != nil {
		return accounts.Person{}, translateAccountsUnique(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE usuarios SET rol = $2, updated_at = now() WHERE id = $1
	`, personID, string(newRole)); err != nil {
		return accounts.Person{}, err
	}

	p, err := scanPerson(tx.QueryRowContext(ctx, selectPerson+` WHERE id = $1`, personID))
	if err != nil {
		return accounts.Person{}, err
	}
	return p, tx.Commit()
}

func (r *AccountsRepo) CountByRole(ctx context.Context, role accounts.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM usuarios WHERE rol = $1
	`, string(role)).Scan(&n)
	return n, err
}

func (r *AccountsRepo) UpdateNotificationSettings(ctx context.Context, personID string, s accounts.NotificationSettings) (accounts.Person, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE usuarios
		SET recibir_notificaciones = $2,
		    recibir_email = $3,
		    recibir_push = $4,
		    updated_at = now()
		WHERE id = $1
	`, personID, s.RecibirNotificaciones, s.RecibirEmail, s.RecibirPush)
	if err != nil {
		return accounts.Person{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return accounts.Person{}, accounts.ErrNotFound
	}
	return r.GetByID(ctx, personID)
}

const selectPerson = `
	SELECT
		id, nombre, apellido, email, telefono, sexo, rol,
		recibir_notificaciones, recibir_email, recibir_push,
		created_at, updated_at
	FROM usuarios`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (accounts.Person, error) {
	var p accounts.Person
	var rol string
	if err := row.Scan(
		&p.ID, &p.Nombre, &p.Apellido, &p.Email, &p.Telefono, &p.Sexo, &rol,
		&p.RecibirNotificaciones, &p.RecibirEmail, &p.RecibirPush,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return accounts.Person{}, accounts.ErrNotFound
		}
		return accounts.Person{}, err
	}
	p.Role = accounts.Role(rol)
	return p, nil
}

func insertProfile(ctx context.Context, tx *sql.Tx, personID string, prof accounts.Profile) error {
	switch prof.Kind {
	case accounts.ProfilePaciente:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pacientes (usuario_id, carnet_identidad, fecha_nacimiento, direccion)
			VALUES ($1,$2,$3,$4)
		`, personID, prof.Paciente.CarnetIdentidad,
			toNullTime(prof.Paciente.FechaNacimiento), prof.Paciente.Direccion)
		return err
	case accounts.ProfileOdontologo:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO odontologos (usuario_id, especialidad, experiencia_profesional, nro_matricula)
			VALUES ($1,$2,$3,$4)
		`, personID, prof.Odontologo.Especialidad,
			prof.Odontologo.ExperienciaProfesional, prof.Odontologo.NroMatricula)
		return err
	case accounts.ProfileRecepcionista:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recepcionistas (usuario_id, habilidades_software)
			VALUES ($1,$2)
		`, personID, prof.Recepcionista.HabilidadesSoftware)
		return err
	}
	return nil
}

func translateAccountsUnique(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(constraint, "email"):
		return accounts.ErrDuplicateEmail
	case strings.Contains(constraint, "carnet"):
		return accounts.ErrDuplicateNationalID
	case strings.Contains(constraint, "matricula"):
		return accounts.ErrDuplicateLicense
	}
	return err
}
