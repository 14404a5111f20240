package format

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
)

func newFormatter(t *testing.T, locale string, opts ...Option) *Formatter {
	t.Helper()
	f, err := New(locale, opts...)
	if err != nil {
		t.Fatalf("New(%q): %v", locale, err)
	}
	return f
}

func TestNew_Locales(t *testing.T) {
	for _, l := range []string{"ru", "ru-RU", "en", "en-US", " en-GB "} {
		if _, err := New(l); err != nil {
			t.Fatalf("New(%q) error: %v", l, err)
		}
	}
	if _, err := New("de"); err == nil {
		t.Fatalf("expected unsupported locale error")
	}
	if _, err := New("!!"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFormatDuration(t *testing.T) {
	en := newFormatter(t, "en")
	cases := map[int64]string{
		0:   "0 min",
		45:  "45 min",
		59:  "59 min",
		60:  "1h",
		90:  "1h 30m",
		120: "2h",
		125: "2h 5m",
	}
	for in, want := range cases {
		if got := en.FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%d) = %q; want %q", in, got, want)
		}
	}

	ru := newFormatter(t, "ru")
	if got := ru.FormatDuration(45); got != "45 мин" {
		t.Fatalf("ru 45 = %q", got)
	}
	if got := ru.FormatDuration(90); got != "1ч 30м" {
		t.Fatalf("ru 90 = %q", got)
	}
	if got := ru.FormatDuration(120); got != "2ч" {
		t.Fatalf("ru 120 = %q", got)
	}
}

func TestFormatChartDate(t *testing.T) {
	en := newFormatter(t, "en")
	ts := "2025-10-07T09:05:00Z"

	if got, err := en.FormatChartDate(ts, domain.PeriodDay); err != nil || got != "09:05" {
		t.Fatalf("day = %q, %v", got, err)
	}
	if got, err := en.FormatChartDate(ts, domain.PeriodMonth); err != nil || got != "07 Oct" {
		t.Fatalf("month = %q, %v", got, err)
	}
	if got, err := en.FormatChartDate(ts, domain.PeriodWeek); err != nil || got != "07 Oct" {
		t.Fatalf("week = %q, %v", got, err)
	}
	if got, err := en.FormatChartDate(ts, domain.Period("quarter")); err != nil || got != "07 Oct" {
		t.Fatalf("unknown period should default to day+month, got %q, %v", got, err)
	}

	ru := newFormatter(t, "ru")
	if got, _ := ru.FormatChartDate(ts, domain.PeriodWeek); got != "07 окт." {
		t.Fatalf("ru week = %q", got)
	}
	if got, _ := ru.FormatChartDate("2025-05-01T00:00:00Z", domain.PeriodMonth); got != "01 мая" {
		t.Fatalf("ru may = %q", got)
	}
}

func TestFormatChartDate_UsesLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	f := newFormatter(t, "en", WithLocation(loc))
	if got, _ := f.FormatChartDate("2025-10-17T22:30:00Z", domain.PeriodDay); got != "01:30" {
		t.Fatalf("day in MSK = %q", got)
	}
	if got, _ := f.FormatChartDate("2025-10-17T22:30:00Z", domain.PeriodWeek); got != "18 Oct" {
		t.Fatalf("week in MSK = %q", got)
	}
}

func TestFormatChartDate_InvalidTimestamp(t *testing.T) {
	f := newFormatter(t, "en")
	for _, ts := range []string{"", "yesterday", "2025-13-45T00:00:00Z"} {
		_, err := f.FormatChartDate(ts, domain.PeriodDay)
		if !errors.Is(err, ErrInvalidTimestamp) {
			t.Fatalf("FormatChartDate(%q) err = %v; want ErrInvalidTimestamp", ts, err)
		}
		var ite *InvalidTimestampError
		if !errors.As(err, &ite) || ite.Value != ts {
			t.Fatalf("unexpected error shape: %#v", err)
		}
	}
}

func TestParseTimestamp_Layouts(t *testing.T) {
	want := time.Date(2025, 10, 17, 10, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2025-10-17T10:00:00Z",
		"2025-10-17T10:00:00.000000Z",
		"2025-10-17T13:00:00+03:00",
		"2025-10-17T10:00:00",
		"2025-10-17 10:00:00",
	} {
		got, err := ParseTimestamp(s)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", s, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q) = %v; want %v", s, got, want)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 10, 17, 15, 30, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	en := newFormatter(t, "en", WithClock(clock))
	if got, err := en.FormatRelativeTime("2025-10-17T15:27:00Z"); err != nil || got != "3 minutes ago" {
		t.Fatalf("en = %q, %v", got, err)
	}
	if got, _ := en.FormatRelativeTime("2025-10-17T13:30:00Z"); got != "2 hours ago" {
		t.Fatalf("en hours = %q", got)
	}

	ru := newFormatter(t, "ru", WithClock(clock))
	cases := map[string]string{
		"2025-10-17T15:29:50Z": "меньше минуты назад",
		"2025-10-17T15:29:00Z": "1 минуту назад",
		"2025-10-17T15:27:00Z": "3 минуты назад",
		"2025-10-17T15:25:00Z": "5 минут назад",
		"2025-10-17T15:19:00Z": "11 минут назад",
		"2025-10-17T15:09:00Z": "21 минуту назад",
		"2025-10-17T13:30:00Z": "2 часа назад",
		"2025-10-12T15:30:00Z": "5 дней назад",
		"2025-08-17T15:30:00Z": "2 месяца назад",
		"2023-10-17T15:30:00Z": "2 года назад",
		"2025-10-17T17:30:00Z": "через 2 часа",
	}
	for ts, want := range cases {
		got, err := ru.FormatRelativeTime(ts)
		if err != nil || got != want {
			t.Fatalf("ru(%s) = %q, %v; want %q", ts, got, err, want)
		}
	}

	if _, err := ru.FormatRelativeTime("garbage"); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestVocabulary_RussianPluralForms(t *testing.T) {
	minutes := russian.units[0]
	cases := map[int64]string{
		1: "минуту", 2: "минуты", 4: "минуты", 5: "минут", 11: "минут", 12: "минут",
		14: "минут", 21: "минуту", 22: "минуты", 25: "минут", 101: "минуту", 111: "минут",
	}
	for n, want := range cases {
		if got := russian.form(n, minutes); got != want {
			t.Fatalf("form(%d) = %q; want %q", n, got, want)
		}
	}
}

func TestVocabulary_MonthNames(t *testing.T) {
	if got := russian.month(time.February); got != "февр." {
		t.Fatalf("ru February = %q", got)
	}
	if got := english.month(time.December); got != "Dec" {
		t.Fatalf("en December = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	en := newFormatter(t, "en")
	cases := map[float64]string{
		0:       "0",
		42:      "42",
		1234:    "1,234",
		1234567: "1,234,567",
		1234.5:  "1,234.5",
	}
	for in, want := range cases {
		if got := en.FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v) = %q; want %q", in, got, want)
		}
	}

	ru := newFormatter(t, "ru")
	got := ru.FormatNumber(1234.5)
	if !strings.Contains(got, ",5") || strings.Contains(got, ".") {
		t.Fatalf("ru FormatNumber(1234.5) = %q; want comma decimal separator", got)
	}
}

func TestFormatCompactNumber(t *testing.T) {
	en := newFormatter(t, "en")
	cases := map[float64]string{
		999:        "999",
		1234:       "1.2K",
		12345:      "12K",
		123456:     "123K",
		999960:     "1M",
		1500000:    "1.5M",
		2000000000: "2B",
		-4500:      "-4.5K",
	}
	for in, want := range cases {
		if got := en.FormatCompactNumber(in); got != want {
			t.Fatalf("FormatCompactNumber(%v) = %q; want %q", in, got, want)
		}
	}

	ru := newFormatter(t, "ru")
	if got := ru.FormatCompactNumber(1500000); !strings.HasSuffix(got, "\u00a0млн") || !strings.Contains(got, ",5") {
		t.Fatalf("ru compact = %q", got)
	}
}

func TestText_DegradesOrPanics(t *testing.T) {
	f := newFormatter(t, "en")
	if got := f.Text("ok", nil); got != "ok" {
		t.Fatalf("Text passthrough = %q", got)
	}
	if got := f.Text("", errors.New("bad")); got != Placeholder {
		t.Fatalf("Text error = %q; want placeholder", got)
	}

	strict := newFormatter(t, "en", WithStrict(true))
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("strict Text should panic")
		}
	}()
	_ = strict.Text("", errors.New("bad"))
}
