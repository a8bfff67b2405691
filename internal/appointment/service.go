package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redisclient "github.com/hackgods/consultas-service/internal/redis"
)

// SchemaLockName is the lock held while the table is dropped or created.
const SchemaLockName = "schema:" + TableName

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	logger   *slog.Logger
	lockWait time.Duration
}

func NewService(repo Repository, locker redisclient.Locker, logger *slog.Logger, lockWait time.Duration) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		logger:   logger,
		lockWait: lockWait,
	}
}

func (s *Service) CreateAppointment(ctx context.Context, d Draft) (*Appointment, error) {
	appt, err := s.repo.Insert(ctx, d)
	if err != nil {
		s.logger.Error("insert appointment failed", "err", err)
		return nil, err
	}
	s.logger.Info("appointment created", "id", appt.ID)
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context) ([]Appointment, error) {
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("list appointments failed", "err", err)
		return nil, err
	}
	s.logger.Debug("appointments listed", "count", len(list))
	return list, nil
}

// UpdateAppointment overwrites every non-id field. Concurrent updates of the
// same id are last-writer-wins; ordering is left to the store.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, d Draft) (*Appointment, error) {
	appt, err := s.repo.UpdateByID(ctx, id, d)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.logger.Info("appointment to update not found", "id", id)
			return nil, err
		}
		s.logger.Error("update appointment failed", "id", id, "err", err)
		return nil, err
	}
	s.logger.Info("appointment updated", "id", appt.ID)
	return appt, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id int64) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.logger.Info("appointment to delete not found", "id", id)
			return err
		}
		s.logger.Error("delete appointment failed", "id", id, "err", err)
		return err
	}
	s.logger.Info("appointment deleted", "id", id)
	return nil
}

// ResetDatabase drops and recreates the table, discarding every record and
// restarting the id sequence.
func (s *Service) ResetDatabase(ctx context.Context) error {
	err := redisclient.WithLockWait(ctx, s.locker, SchemaLockName, s.lockWait, 100*time.Millisecond, s.repo.ResetSchema)
	if err != nil {
		err = storeErr("reset database", err)
		s.logger.Error("reset database failed", "err", err)
		return err
	}
	s.logger.Info("database reset")
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}
