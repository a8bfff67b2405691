package appointment

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const columns = `id, nome, data_nascimento, data_atendimento, horario, tipo`

var createIfAbsent = strings.Replace(Schema, "CREATE TABLE", "CREATE TABLE IF NOT EXISTS", 1)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.BirthDate,
		&a.AppointmentDate,
		&a.Time,
		&a.Kind,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) Insert(ctx context.Context, d Draft) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO consultas (nome, data_nascimento, data_atendimento, horario, tipo)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+columns,
		d.Name, d.BirthDate, d.AppointmentDate, d.Time, d.Kind)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, storeErr("insert appointment", err)
	}
	return a, nil
}

func (r *PgRepository) ListAll(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM consultas
		ORDER BY data_atendimento COLLATE "C" ASC, horario COLLATE "C" ASC, id ASC
	`)
	if err != nil {
		return nil, storeErr("list appointments", err)
	}
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, storeErr("scan appointment", err)
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list appointments", err)
	}

	return result, nil
}

func (r *PgRepository) UpdateByID(ctx context.Context, id int64, d Draft) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE consultas
		SET nome = $1,
		    data_nascimento = $2,
		    data_atendimento = $3,
		    horario = $4,
		    tipo = $5
		WHERE id = $6
		RETURNING `+columns,
		d.Name, d.BirthDate, d.AppointmentDate, d.Time, d.Kind, id)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storeErr("update appointment", err)
	}
	return a, nil
}

func (r *PgRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM consultas WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// ResetSchema drops and recreates the table in one transaction, which also
// restarts the id sequence.
func (r *PgRepository) ResetSchema(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin reset", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS consultas`); err != nil {
		return storeErr("drop table", err)
	}
	if _, err := tx.Exec(ctx, Schema); err != nil {
		return storeErr("create table", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit reset", err)
	}
	return nil
}

func (r *PgRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createIfAbsent); err != nil {
		return storeErr("create table", err)
	}
	return nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}
