package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"wellness/internal/core"
	"wellness/internal/types"
)

// maxPushTokenLength bounds stored tokens. Expo and FCM tokens are far
// shorter.
const maxPushTokenLength = 512

// DeviceRegistry stores push tokens. Implemented by db.PushDeviceRepository.
type DeviceRegistry interface {
	Upsert(ctx context.Context, d *types.PushDevice) error
	Delete(ctx context.Context, userID, token string) error
}

// RegisterDeviceRequest is the body of POST /api/push/devices.
type RegisterDeviceRequest struct {
	Token    string             `json:"token" validate:"required,max=512"`
	Platform types.PushPlatform `json:"platform" validate:"required,oneof=ios android web"`
}

// DeviceHandler manages the authenticated user's push tokens.
type DeviceHandler struct {
	devices   DeviceRegistry
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

func NewDeviceHandler(devices DeviceRegistry, v *core.Validator, clock types.Clock, l *slog.Logger) *DeviceHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &DeviceHandler{devices: devices, validator: v, clock: clock, logger: l}
}

// RegisterRoutes mounts the device endpoints. The caller applies
// authentication.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Register)
	r.Delete("/{token}", h.Delete)
}

// Register upserts a token for the caller. Registering the same token again
// refreshes its platform and last-seen time.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := validatePushToken(req.Token); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	device := &types.PushDevice{
		UserID:     actor.ID,
		Token:      req.Token,
		Platform:   req.Platform,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := h.devices.Upsert(r.Context(), device); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "push device registered", "user_id", actor.ID, "platform", req.Platform)
	core.JSON(w, r, http.StatusCreated, device)
}

// Delete removes one of the caller's tokens. 404 when the caller does not
// own it.
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireUser(w, r)
	if !ok {
		return
	}

	token, err := url.PathUnescape(chi.URLParam(r, "token"))
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidToken, "push token is malformed", err))
		return
	}
	if err := validatePushToken(token); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.devices.Delete(r.Context(), actor.ID, token); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validatePushToken(token string) error {
	if token == "" || len(token) > maxPushTokenLength || strings.ContainsAny(token, " \t\r\n") {
		return types.NewAppError(types.ErrCodeValidationInvalidToken, "push token is malformed", nil)
	}
	return nil
}

