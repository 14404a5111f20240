package services

import (
	"context"
	"strconv"
	"time"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
	"github.com/tbourn/go-bot-dashboard/internal/format"
	"github.com/tbourn/go-bot-dashboard/internal/query"
)

// StatisticsReader is the part of the period cache DashboardService needs.
type StatisticsReader interface {
	Get(ctx context.Context, p domain.Period) (query.StatisticsState, error)
}

// DashboardService builds dashboard views from cached statistics.
type DashboardService struct {
	Stats  StatisticsReader
	Format *format.Formatter
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(stats StatisticsReader, f *format.Formatter) *DashboardService {
	return &DashboardService{Stats: stats, Format: f}
}

// SummaryCard is one of the three headline figures.
type SummaryCard struct {
	Key         string `json:"key" example:"total_users"`
	Title       string `json:"title" example:"Всего пользователей"`
	Description string `json:"description" example:"Уникальные пользователи"`
	Value       int64  `json:"value" example:"1250"`
	Display     string `json:"display" example:"1 250"`
	Compact     string `json:"compact" example:"1,3 тыс."`
}

// ChartPoint is one sample of the activity chart with its axis label.
type ChartPoint struct {
	Timestamp    string `json:"timestamp" example:"2025-10-17T14:00:00"`
	Label        string `json:"label" example:"14:00"`
	MessageCount int64  `json:"message_count" example:"150"`
	ActiveUsers  int64  `json:"active_users" example:"45"`
}

// DialogRow is one row of the recent-dialogs table.
type DialogRow struct {
	UserID        int64  `json:"user_id" example:"123456789"`
	MessageCount  int64  `json:"message_count" example:"15"`
	LastMessageAt string `json:"last_message_at" example:"2025-10-17T15:30:00"`
	LastMessage   string `json:"last_message" example:"5 минут назад"`
	Duration      string `json:"duration" example:"25 мин"`
}

// TopUserRow is one row of the top-users table. Rank starts at 1.
type TopUserRow struct {
	Rank          int    `json:"rank" example:"1"`
	Badge         string `json:"badge" example:"🥇"`
	UserID        int64  `json:"user_id" example:"123456789"`
	TotalMessages int64  `json:"total_messages" example:"250"`
	Display       string `json:"display" example:"250"`
	DialogCount   int64  `json:"dialog_count" example:"12"`
	LastActivity  string `json:"last_activity" example:"2 часа назад"`
}

// DashboardView is everything the dashboard page renders for one period.
// Empty is true when a snapshot is present but every collection is empty.
type DashboardView struct {
	Period        domain.Period `json:"period" example:"week"`
	IsLoading     bool          `json:"is_loading"`
	IsFetching    bool          `json:"is_fetching"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
	Empty         bool          `json:"empty"`
	Summary       []SummaryCard `json:"summary"`
	Chart         []ChartPoint  `json:"chart"`
	RecentDialogs []DialogRow   `json:"recent_dialogs"`
	TopUsers      []TopUserRow  `json:"top_users"`

	// Err is the cache entry's last fetch failure; not serialized directly.
	Err error `json:"-"`
}

// View reads period p through the cache and builds its view. The error is
// non-nil only for an invalid period, a closed cache, or ctx expiry; fetch
// failures are carried on DashboardView.Err next to any stale data.
func (s *DashboardService) View(ctx context.Context, p domain.Period) (*DashboardView, error) {
	if s.Stats == nil {
		return nil, ErrNoStatistics
	}
	if s.Format == nil {
		return nil, ErrNoFormatter
	}
	st, err := s.Stats.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.Build(p, st), nil
}

// Build normalizes one cache state into a view. It never fails: values that
// cannot be formatted degrade to format.Placeholder (or panic when the
// formatter is strict).
func (s *DashboardService) Build(p domain.Period, st query.StatisticsState) *DashboardView {
	v := &DashboardView{
		Period:        p,
		IsLoading:     st.IsLoading,
		IsFetching:    st.IsFetching,
		Err:           st.Err,
		Summary:       []SummaryCard{},
		Chart:         []ChartPoint{},
		RecentDialogs: []DialogRow{},
		TopUsers:      []TopUserRow{},
	}
	if !st.UpdatedAt.IsZero() {
		t := st.UpdatedAt
		v.UpdatedAt = &t
	}
	snap := st.Data
	if snap == nil {
		return v
	}

	f := s.Format
	lbl := labelsFor(f)

	v.Summary = []SummaryCard{
		s.card("total_users", lbl.totalUsers, snap.Summary.TotalUsers),
		s.card("total_messages", lbl.totalMessages, snap.Summary.TotalMessages),
		s.card("active_dialogs", lbl.activeDialogs, snap.Summary.ActiveDialogs),
	}

	for _, pt := range snap.ActivityTimeline {
		label, err := f.FormatChartDate(pt.Timestamp, p)
		v.Chart = append(v.Chart, ChartPoint{
			Timestamp:    pt.Timestamp,
			Label:        f.Text(label, err),
			MessageCount: pt.MessageCount,
			ActiveUsers:  pt.ActiveUsers,
		})
	}

	for _, d := range snap.RecentDialogs {
		rel, err := f.FormatRelativeTime(d.LastMessageAt)
		v.RecentDialogs = append(v.RecentDialogs, DialogRow{
			UserID:        d.UserID,
			MessageCount:  d.MessageCount,
			LastMessageAt: d.LastMessageAt,
			LastMessage:   f.Text(rel, err),
			Duration:      f.FormatDuration(d.DurationMinutes),
		})
	}

	for i, u := range snap.TopUsers {
		rel, err := f.FormatRelativeTime(u.LastActivity)
		v.TopUsers = append(v.TopUsers, TopUserRow{
			Rank:          i + 1,
			Badge:         rankBadge(i + 1),
			UserID:        u.UserID,
			TotalMessages: u.TotalMessages,
			Display:       f.FormatNumber(float64(u.TotalMessages)),
			DialogCount:   u.DialogCount,
			LastActivity:  f.Text(rel, err),
		})
	}

	v.Empty = len(v.Chart) == 0 && len(v.RecentDialogs) == 0 && len(v.TopUsers) == 0
	return v
}

func (s *DashboardService) card(key string, l cardLabel, n int64) SummaryCard {
	return SummaryCard{
		Key:         key,
		Title:       l.title,
		Description: l.description,
		Value:       n,
		Display:     s.Format.FormatNumber(float64(n)),
		Compact:     s.Format.FormatCompactNumber(float64(n)),
	}
}

func rankBadge(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return "#" + strconv.Itoa(rank)
	}
}
