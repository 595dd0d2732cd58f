// Package handlers contains the HTTP handlers mounted under /api.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"wellness/internal/alerts"
	"wellness/internal/core"
)

// AlertDispatcher runs one dispatch pass. Implemented by alerts.Dispatcher.
type AlertDispatcher interface {
	Run(ctx context.Context) (alerts.DispatchResult, error)
}

// CronHandler serves GET /api/cron/alerts, invoked by the platform
// scheduler with the shared cron secret.
type CronHandler struct {
	dispatcher AlertDispatcher
	logger     *slog.Logger
}

func NewCronHandler(d AlertDispatcher, l *slog.Logger) *CronHandler {
	return &CronHandler{dispatcher: d, logger: l}
}

// RunAlerts runs a dispatch pass and reports its counters. A pass that was
// skipped because another one holds the run lock still answers 200.
func (h *CronHandler) RunAlerts(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.Run(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "alert dispatch failed", "error", err)
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "alert dispatch complete",
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed,
		"rescheduled", result.Rescheduled,
		"expired", result.Expired,
		"cancelled", result.Cancelled,
		"skipped", result.Skipped,
	)
	core.JSON(w, r, http.StatusOK, result)
}
