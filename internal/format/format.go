// Package format turns raw snapshot fields into locale-aware display strings.
//
// All functions are deterministic for a given locale, time zone and clock.
// Timestamp inputs are the raw ISO 8601 strings sent by the backend; values
// that do not parse fail with *InvalidTimestampError instead of rendering
// garbage. Text lets callers degrade such failures to Placeholder in
// production while panicking in development.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Placeholder is rendered in place of a value that failed to format.
const Placeholder = "—"

// ErrInvalidTimestamp matches any *InvalidTimestampError via errors.Is.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// InvalidTimestampError reports a timestamp that could not be parsed.
type InvalidTimestampError struct {
	Value string
	Err   error
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %v", e.Value, e.Err)
}

func (e *InvalidTimestampError) Unwrap() error { return e.Err }

func (e *InvalidTimestampError) Is(target error) bool { return target == ErrInvalidTimestamp }

// Formatter renders numbers, dates and durations for one locale.
// It is safe for concurrent use.
type Formatter struct {
	tag     language.Tag
	words   *vocabulary
	loc     *time.Location
	clock   clockwork.Clock
	strict  bool
	printer *message.Printer
}

// Option customizes a Formatter.
type Option func(*Formatter)

// WithLocation renders wall-clock values in loc (default UTC).
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithClock sets the clock used by FormatRelativeTime.
func WithClock(c clockwork.Clock) Option {
	return func(f *Formatter) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithStrict makes Text panic on formatting errors (development mode).
func WithStrict(strict bool) Option {
	return func(f *Formatter) { f.strict = strict }
}

// New returns a Formatter for locale ("ru", "ru-RU", "en", "en-US", ...).
// Only Russian and English are supported.
func New(locale string, opts ...Option) (*Formatter, error) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return nil, fmt.Errorf("format: parse locale %q: %w", locale, err)
	}
	base, _ := tag.Base()

	f := &Formatter{
		loc:   time.UTC,
		clock: clockwork.NewRealClock(),
	}
	switch base.String() {
	case "ru":
		f.tag, f.words = language.Russian, &russian
	case "en":
		f.tag, f.words = language.English, &english
	default:
		return nil, fmt.Errorf("format: unsupported locale %q", locale)
	}
	f.printer = message.NewPrinter(f.tag)

	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Locale returns the resolved language tag.
func (f *Formatter) Locale() language.Tag { return f.tag }

// Text returns s, or handles err: it panics in strict mode and otherwise
// logs and returns Placeholder.
func (f *Formatter) Text(s string, err error) string {
	if err == nil {
		return s
	}
	if f.strict {
		panic(err)
	}
	log.Warn().Err(err).Msg("format failed")
	return Placeholder
}

// ParseTimestamp parses a backend timestamp. Values without a zone are
// treated as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, &InvalidTimestampError{Value: s, Err: errors.New("empty")}
	}
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &InvalidTimestampError{Value: s, Err: firstErr}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}
