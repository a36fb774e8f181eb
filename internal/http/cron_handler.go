package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"wisefido-shift/internal/reminder"
)

// SweepRunner one reminder sweep
type SweepRunner interface {
	RunOnce(ctx context.Context) (reminder.SweepResult, error)
}

// CronHandler trigger for external schedulers (cron jobs, serverless timers)
type CronHandler struct {
	sweeper SweepRunner
	logger  *zap.Logger
}

func NewCronHandler(sweeper SweepRunner, logger *zap.Logger) *CronHandler {
	return &CronHandler{sweeper: sweeper, logger: logger}
}

// POST /api/cron/reminders
// runs one sweep and returns its counters
func (h *CronHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	// a client disconnect does not abort the sweep
	res, err := h.sweeper.RunOnce(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Error("Cron reminder sweep failed", zap.Error(err))
		writeJSON(w, statusForError(err), Fail("reminder sweep failed"))
		return
	}
	h.logger.Info("Cron reminder sweep completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	writeJSON(w, http.StatusOK, Ok(res))
}
