package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/logging"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the liveness payload.
type HealthStatus struct {
	Status string `json:"status" example:"OK"`
	DB     bool   `json:"db" example:"true"`
}

// Health godoc
// @Summary      Liveness check
// @Description  Reports whether the process is up and the database answers a ping.
// @Tags         Health
// @Produce      json
// @Success      200 {object} handlers.HealthStatus
// @Failure      503 {object} handlers.HealthStatus
// @Router       /health [get]
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if db == nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthStatus{Status: "DEGRADED"})
			return
		}
		if err := db.Ping(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("health: database ping failed")
			writeJSON(w, http.StatusServiceUnavailable, HealthStatus{Status: "DEGRADED"})
			return
		}
		writeJSON(w, http.StatusOK, HealthStatus{Status: "OK", DB: true})
	}
}
