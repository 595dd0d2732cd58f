package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

var (
	_ sql.Scanner   = (*AlertData)(nil)
	_ driver.Valuer = AlertData(nil)
	_ sql.Scanner   = (*RecurrenceRule)(nil)
	_ driver.Valuer = RecurrenceRule{}
)

func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// AlertData is the free-form payload attached to an alert and forwarded to
// the push provider (deep links, entity IDs).
type AlertData map[string]any

func (d *AlertData) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}
	return scanJSONB(d, value)
}

func (d AlertData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(map[string]any(d))
}

// RecurrenceRule refines a Recurrence cadence.
//
//	{"interval": 2, "days_of_week": [1, 3], "until": "2026-12-31T00:00:00Z"}
//
// DaysOfWeek uses time.Weekday numbering (0 = Sunday) and only applies to
// weekly recurrences.
type RecurrenceRule struct {
	Interval   int        `json:"interval,omitempty"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
}

func (r *RecurrenceRule) Scan(value any) error {
	return scanJSONB(r, value)
}

func (r RecurrenceRule) Value() (driver.Value, error) {
	return json.Marshal(r)
}
