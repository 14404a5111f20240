// Package domain defines the statistics payload returned by the bot backend
// and the period values used to request it. These types are shared by the
// remote client, the cache/query layer, and the presentation services.
package domain

import (
	"errors"
	"strings"
)

// Period selects the aggregation granularity requested from the backend.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// DefaultPeriod is the period shown when the caller does not pick one.
const DefaultPeriod = PeriodWeek

// ErrInvalidPeriod is returned by ParsePeriod for values outside day|week|month.
var ErrInvalidPeriod = errors.New("period must be one of: day, week, month")

// Periods lists every supported period in display order.
func Periods() []Period {
	return []Period{PeriodDay, PeriodWeek, PeriodMonth}
}

// ParsePeriod normalizes s (case-insensitive, trimmed) into a Period.
// An empty string yields DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPeriod, nil
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// Valid reports whether p is one of the supported periods.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// String returns the wire value of p.
func (p Period) String() string { return string(p) }

// Summary holds the period totals shown on the summary cards.
type Summary struct {
	TotalUsers    int64 `json:"total_users"     example:"150"`
	TotalMessages int64 `json:"total_messages"  example:"4523"`
	ActiveDialogs int64 `json:"active_dialogs"  example:"89"`
}

// ActivityPoint is one sampled interval of the activity timeline.
// Timestamps are kept exactly as the backend sent them (ISO 8601, UTC).
type ActivityPoint struct {
	Timestamp    string `json:"timestamp"     example:"2025-10-17T10:00:00Z"`
	MessageCount int64  `json:"message_count" example:"145"`
	ActiveUsers  int64  `json:"active_users"  example:"42"`
}

// RecentDialog describes one recently active dialog.
type RecentDialog struct {
	UserID          int64  `json:"user_id"          example:"123456789"`
	MessageCount    int64  `json:"message_count"    example:"25"`
	LastMessageAt   string `json:"last_message_at"  example:"2025-10-17T15:30:00Z"`
	DurationMinutes int64  `json:"duration_minutes" example:"45"`
}

// TopUser is a ranked user entry.
type TopUser struct {
	UserID        int64  `json:"user_id"        example:"123456789"`
	TotalMessages int64  `json:"total_messages" example:"523"`
	DialogCount   int64  `json:"dialog_count"   example:"45"`
	LastActivity  string `json:"last_activity"  example:"2025-10-17T15:30:00Z"`
}

// StatisticsSnapshot is the full payload for one period at one point in time.
//
// Slices preserve backend order: ActivityTimeline is chronological,
// RecentDialogs is most-recent first, TopUsers is ranked.
type StatisticsSnapshot struct {
	Summary          Summary         `json:"summary"`
	ActivityTimeline []ActivityPoint `json:"activity_timeline"`
	RecentDialogs    []RecentDialog  `json:"recent_dialogs"`
	TopUsers         []TopUser       `json:"top_users"`
}

// HealthStatus is the body returned by the backend liveness endpoint.
type HealthStatus struct {
	Status string `json:"status" example:"ok"`
}
