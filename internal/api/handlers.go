package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hackgods/consultas-service/internal/appointment"
)

// AppointmentService is what the handlers need from the appointment layer.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, d appointment.Draft) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context) ([]appointment.Appointment, error)
	UpdateAppointment(ctx context.Context, id int64, d appointment.Draft) (*appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) error
	ResetDatabase(ctx context.Context) error
}

func createAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Warn("invalid insert body", "err", err, "request_id", GetRequestID(r.Context()))
			writeMessage(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), req.Draft)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, msgInsertFailed)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListAppointments(r.Context())
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, msgListFailed)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func updateAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Warn("invalid update body", "err", err, "request_id", GetRequestID(r.Context()))
			writeMessage(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		// no row can match a missing id
		if !req.ID.Set {
			writeMessage(w, http.StatusNotFound, msgNotFound)
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), req.ID.Value, req.Draft)
		if err != nil {
			handleStoreError(w, err, msgUpdateFailed)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func deleteAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Warn("invalid delete body", "err", err, "request_id", GetRequestID(r.Context()))
			writeMessage(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		if !req.ID.Present() {
			logger.Warn("delete without id", "request_id", GetRequestID(r.Context()))
			writeMessage(w, http.StatusBadRequest, msgMissingID)
			return
		}

		if err := svc.DeleteAppointment(r.Context(), req.ID.Value); err != nil {
			handleStoreError(w, err, msgDeleteFailed)
			return
		}

		writeMessage(w, http.StatusOK, msgDeleted)
	}
}

func resetDatabaseHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ResetDatabase(r.Context()); err != nil {
			writeMessage(w, http.StatusInternalServerError, msgResetFailed)
			return
		}

		writeMessage(w, http.StatusOK, msgResetDone)
	}
}

func handleStoreError(w http.ResponseWriter, err error, failure string) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeMessage(w, http.StatusNotFound, msgNotFound)
	default:
		writeMessage(w, http.StatusInternalServerError, failure)
	}
}
