package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wellness/internal/alerts"
	"wellness/internal/core"
	"wellness/internal/types"
)

// PreferenceStore reads and writes per-user overrides. Implemented by
// db.PreferenceRepository.
type PreferenceStore interface {
	ListForUser(ctx context.Context, userID string) ([]types.AlertPreferenceView, error)
	UpsertBatch(ctx context.Context, userID string, updates []types.PreferenceUpdate, now time.Time) (int, error)
}

// AlertCatalog reports which alert type IDs exist. Implemented by
// db.AlertTypeRepository.
type AlertCatalog interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// PreferenceDTO is one row of GET /api/alerts/preferences. Priority, channel
// and enabled are the effective values; IsDefault is true when the user has
// no override for the type.
type PreferenceDTO struct {
	AlertTypeID string         `json:"alert_type_id"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	PremiumOnly bool           `json:"premium_only"`
	Enabled     bool           `json:"enabled"`
	Priority    types.Priority `json:"priority"`
	Channel     types.Channel  `json:"channel"`
	QuietStart  *string        `json:"quiet_start"`
	QuietEnd    *string        `json:"quiet_end"`
	IsDefault   bool           `json:"is_default"`
}

// ListPreferencesResponse is the body of GET /api/alerts/preferences.
type ListPreferencesResponse struct {
	Preferences []PreferenceDTO `json:"preferences"`
}

// PreferenceUpdateItem is one entry of PUT /api/alerts/preferences. Omitted
// fields keep their stored value. An explicit null for priority, channel,
// quiet_start or quiet_end removes the override.
type PreferenceUpdateItem struct {
	AlertTypeID string          `json:"alert_type_id" validate:"required,max=100"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Priority    *types.Priority `json:"priority,omitempty" validate:"omitempty,priority"`
	Channel     *types.Channel  `json:"channel,omitempty" validate:"omitempty,channel"`
	QuietStart  *string         `json:"quiet_start,omitempty" validate:"omitempty,hhmm"`
	QuietEnd    *string         `json:"quiet_end,omitempty" validate:"omitempty,hhmm"`

	nulls map[string]bool
}

// clearableFields are the overrides a client can reset with null.
var clearableFields = []string{"priority", "channel", "quiet_start", "quiet_end"}

// UnmarshalJSON decodes the item strictly and remembers which clearable
// fields were sent as null, since both null and absence decode to nil.
func (p *PreferenceUpdateItem) UnmarshalJSON(data []byte) error {
	type plain PreferenceUpdateItem
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode((*plain)(p)); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.nulls = nil
	for _, field := range clearableFields {
		if v, ok := raw[field]; ok && string(bytes.TrimSpace(v)) == "null" {
			if p.nulls == nil {
				p.nulls = make(map[string]bool)
			}
			p.nulls[field] = true
		}
	}
	return nil
}

func (p PreferenceUpdateItem) toUpdate() types.PreferenceUpdate {
	return types.PreferenceUpdate{
		AlertTypeID:     p.AlertTypeID,
		Enabled:         p.Enabled,
		Priority:        p.Priority,
		Channel:         p.Channel,
		QuietStart:      p.QuietStart,
		QuietEnd:        p.QuietEnd,
		ClearPriority:   p.nulls["priority"],
		ClearChannel:    p.nulls["channel"],
		ClearQuietStart: p.nulls["quiet_start"],
		ClearQuietEnd:   p.nulls["quiet_end"],
	}
}

// UpdatePreferencesRequest is the body of PUT /api/alerts/preferences.
type UpdatePreferencesRequest struct {
	Preferences []PreferenceUpdateItem `json:"preferences" validate:"required,max=100,dive"`
}

// UpdatePreferencesResponse is returned after a successful batch write.
type UpdatePreferencesResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

// PreferenceHandler serves the alert preference endpoints.
type PreferenceHandler struct {
	store     PreferenceStore
	catalog   AlertCatalog
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

func NewPreferenceHandler(store PreferenceStore, catalog AlertCatalog, v *core.Validator, clock types.Clock, l *slog.Logger) *PreferenceHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &PreferenceHandler{store: store, catalog: catalog, validator: v, clock: clock, logger: l}
}

// RegisterRoutes mounts the preference endpoints. The caller applies
// authentication.
func (h *PreferenceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Update)
}

// List returns one row per enabled alert type with the user's overrides
// merged over the type defaults.
func (h *PreferenceHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireUser(w, r)
	if !ok {
		return
	}

	views, err := h.store.ListForUser(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := make([]PreferenceDTO, 0, len(views))
	for _, v := range views {
		s := alerts.ResolveSettings(v.Type, v.Preference)
		out = append(out, PreferenceDTO{
			AlertTypeID: v.Type.ID,
			Label:       v.Type.Label,
			Description: v.Type.Description,
			Category:    v.Type.Category,
			PremiumOnly: v.Type.PremiumOnly,
			Enabled:     s.Enabled,
			Priority:    s.Priority,
			Channel:     s.Channel,
			QuietStart:  s.QuietStart,
			QuietEnd:    s.QuietEnd,
			IsDefault:   v.Preference == nil,
		})
	}
	core.JSON(w, r, http.StatusOK, ListPreferencesResponse{Preferences: out})
}

// Update validates the whole batch, rejects it if any alert type is
// unknown, and writes every row in one transaction.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdatePreferencesRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ids := make([]string, 0, len(req.Preferences))
	for _, p := range req.Preferences {
		ids = append(ids, p.AlertTypeID)
	}
	known, err := h.catalog.ExistingIDs(r.Context(), ids)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	var unknown []string
	for _, id := range ids {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationUnknownAlertType,
			fmt.Sprintf("unknown alert_type_id: %s", strings.Join(unknown, ", ")), nil,
			map[string]any{"alert_type_ids": unknown}))
		return
	}

	updates := make([]types.PreferenceUpdate, len(req.Preferences))
	for i, p := range req.Preferences {
		updates[i] = p.toUpdate()
	}

	n, err := h.store.UpsertBatch(r.Context(), actor.ID, updates, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "alert preferences updated", "user_id", actor.ID, "updated", n)
	core.JSON(w, r, http.StatusOK, UpdatePreferencesResponse{Success: true, Updated: n})
}
