package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wellness/internal/core"
	"wellness/internal/gamification"
)

// XPAwarder records an XP event. Implemented by gamification.Service.
type XPAwarder interface {
	AwardXP(ctx context.Context, userID, eventType, source string) (*gamification.AwardResult, error)
}

// AwardXPRequest is the body of POST /api/gamification/xp.
type AwardXPRequest struct {
	EventType string `json:"eventType" validate:"required,max=64"`
	Source    string `json:"source,omitempty" validate:"max=128"`
}

// GamificationHandler serves the XP endpoint.
type GamificationHandler struct {
	awarder   XPAwarder
	validator *core.Validator
	logger    *slog.Logger
}

func NewGamificationHandler(a XPAwarder, v *core.Validator, l *slog.Logger) *GamificationHandler {
	return &GamificationHandler{awarder: a, validator: v, logger: l}
}

// RegisterRoutes mounts POST /xp. The caller applies authentication and the
// per-user rate limit.
func (h *GamificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/xp", h.AwardXP)
}

// AwardXP credits the event's fixed reward and returns the new balance with
// any achievements unlocked by it. Unknown event types are rejected with
// 400 before anything is written.
func (h *GamificationHandler) AwardXP(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AwardXPRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.awarder.AwardXP(r.Context(), actor.ID, req.EventType, req.Source)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "xp award failed",
			"user_id", actor.ID,
			"event_type", req.EventType,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	if len(result.NewAchievements) > 0 {
		h.logger.InfoContext(r.Context(), "achievements unlocked",
			"user_id", actor.ID,
			"count", len(result.NewAchievements),
		)
	}
	core.JSON(w, r, http.StatusOK, result)
}
