package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/repograder/internal/api/response"
)

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// NewHealthHandler returns GET /api/v1/health. A nil cache is reported as
// "disabled" and does not fail the check.
func NewHealthHandler(db, c Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		res := healthResponse{Status: "ok", Database: "ok", Cache: "disabled"}
		if err := db.Ping(ctx); err != nil {
			slog.Warn("health: database ping failed", "error", err)
			res.Status, res.Database = "degraded", "unreachable"
		}
		if c != nil {
			res.Cache = "ok"
			if err := c.Ping(ctx); err != nil {
				slog.Warn("health: cache ping failed", "error", err)
				res.Status, res.Cache = "degraded", "unreachable"
			}
		}

		if res.Status != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
				"One or more dependencies are unreachable", res)
			return
		}
		response.JSON(w, res)
	}
}
