package appointment

import (
	"context"
	"errors"
	"fmt"
)

const TableName = "consultas"

// Schema is the single definition of the consultas table, shared by the
// startup initializer and the reset endpoint.
const Schema = `
	CREATE TABLE consultas (
		id SERIAL PRIMARY KEY,
		nome VARCHAR(255) NOT NULL,
		data_nascimento VARCHAR(255) NOT NULL,
		data_atendimento VARCHAR(255) NOT NULL,
		horario VARCHAR(255) NOT NULL,
		tipo VARCHAR(255) NOT NULL
	)
`

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// StoreError wraps any failure coming back from the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Insert(ctx context.Context, d Draft) (*Appointment, error)
	// ListAll orders by appointment date, then time, both compared as text.
	ListAll(ctx context.Context) ([]Appointment, error)
	UpdateByID(ctx context.Context, id int64, d Draft) (*Appointment, error)
	DeleteByID(ctx context.Context, id int64) error

	// Schema management
	ResetSchema(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	Ping(ctx context.Context) error
}
