package format

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
)

// FormatChartDate renders an axis label: "HH:mm" for the day period and
// "dd <month>" for week, month and any other value.
func (f *Formatter) FormatChartDate(ts string, p domain.Period) (string, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	t = t.In(f.loc)
	if p == domain.PeriodDay {
		return t.Format("15:04"), nil
	}
	return fmt.Sprintf("%02d %s", t.Day(), f.words.month(t.Month())), nil
}

// FormatTimestamp renders ts as a full local date and time ("02.01.2006 15:04").
func (f *Formatter) FormatTimestamp(ts string) (string, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	return t.In(f.loc).Format("02.01.2006 15:04"), nil
}

// FormatRelativeTime renders ts relative to the formatter clock
// ("3 minutes ago", "3 минуты назад").
func (f *Formatter) FormatRelativeTime(ts string) (string, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	now := f.clock.Now()
	if f.words == &english {
		return humanize.RelTime(t, now, "ago", "from now"), nil
	}
	return f.relative(t, now), nil
}

// relative implements relative phrases for plural-inflected locales.
func (f *Formatter) relative(t, now time.Time) string {
	d := now.Sub(t)
	pattern := f.words.ago
	if d < 0 {
		d = -d
		pattern = f.words.in
	}

	var n int64
	var unit plural
	switch {
	case d < 45*time.Second:
		return fmt.Sprintf(pattern, f.words.justNow)
	case d < 45*time.Minute:
		n, unit = roundUnits(d, time.Minute), f.words.units[0]
	case d < 24*time.Hour:
		n, unit = roundUnits(d, time.Hour), f.words.units[1]
	case d < 30*24*time.Hour:
		n, unit = roundUnits(d, 24*time.Hour), f.words.units[2]
	case d < 365*24*time.Hour:
		n, unit = roundUnits(d, 30*24*time.Hour), f.words.units[3]
	default:
		n, unit = roundUnits(d, 365*24*time.Hour), f.words.units[4]
	}
	return fmt.Sprintf(pattern, strconv.FormatInt(n, 10)+" "+f.words.form(n, unit))
}

func roundUnits(d, unit time.Duration) int64 {
	n := int64(math.Round(float64(d) / float64(unit)))
	if n < 1 {
		n = 1
	}
	return n
}

// FormatDuration renders a dialog length: "<n> min" under an hour,
// otherwise "<h>h <m>m", dropping the minutes when they are zero.
func (f *Formatter) FormatDuration(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("%d %s", minutes, f.words.minutesShort)
	}
	h, m := minutes/60, minutes%60
	if m > 0 {
		return fmt.Sprintf("%d%s %d%s", h, f.words.hourUnit, m, f.words.minuteUnit)
	}
	return fmt.Sprintf("%d%s", h, f.words.hourUnit)
}
