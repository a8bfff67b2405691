package api

import (
	"context"
	"net/http"
	"time"
)

// ReadinessCheck is a named dependency probe for /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(context.Context) error
}

type HealthHandler struct {
	checks  []ReadinessCheck
	env     string
	version string
}

func NewHealthHandler(env, version string, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	status := "ok"

	for _, c := range h.checks {
		if c.Check == nil {
			continue
		}
		checkCtx, checkCancel := context.WithTimeout(ctx, time.Second)
		err := c.Check(checkCtx)
		checkCancel()
		if err != nil {
			deps[c.Name] = "down"
			status = "error"
		} else {
			deps[c.Name] = "ok"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
