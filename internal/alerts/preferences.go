package alerts

import (
	"context"
	"fmt"

	"wellness/internal/types"
)

// Resolver merges alert type defaults with user overrides.
type Resolver struct {
	types AlertTypeStore
	prefs PreferenceStore
}

func NewResolver(alertTypes AlertTypeStore, prefs PreferenceStore) *Resolver {
	return &Resolver{types: alertTypes, prefs: prefs}
}

// GetEffectiveSettings returns nil when the alert type is missing or
// disabled in the catalog.
func (r *Resolver) GetEffectiveSettings(ctx context.Context, userID, alertTypeID string) (*types.EffectiveSettings, error) {
	at, err := r.types.GetByID(ctx, alertTypeID)
	if err != nil {
		return nil, fmt.Errorf("loading alert type %s: %w", alertTypeID, err)
	}
	if at == nil || !at.Enabled {
		return nil, nil
	}

	pref, err := r.prefs.Get(ctx, userID, alertTypeID)
	if err != nil {
		return nil, fmt.Errorf("loading preference for %s: %w", alertTypeID, err)
	}
	s := ResolveSettings(*at, pref)
	return &s, nil
}

// ResolveSettings is the pure merge behind GetEffectiveSettings. Each field
// takes the user's value when present and the type default otherwise.
// Alert types carry no quiet hours of their own.
func ResolveSettings(at types.AlertType, pref *types.UserAlertPreference) types.EffectiveSettings {
	s := types.EffectiveSettings{
		Enabled:         true,
		Priority:        at.DefaultPriority,
		Channel:         at.DefaultChannel,
		CooldownMinutes: at.CooldownMinutes,
	}
	if pref == nil {
		return s
	}

	s.Enabled = pref.Enabled
	if pref.Priority != nil && *pref.Priority != "" {
		s.Priority = *pref.Priority
	}
	if pref.Channel != nil && *pref.Channel != "" {
		s.Channel = *pref.Channel
	}
	if pref.QuietStart != nil && *pref.QuietStart != "" {
		s.QuietStart = pref.QuietStart
	}
	if pref.QuietEnd != nil && *pref.QuietEnd != "" {
		s.QuietEnd = pref.QuietEnd
	}
	return s
}
