package format

import (
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/ru"
)

// vocabulary holds the locale-specific words used by the formatters. Month
// names and plural categories come from the CLDR tables in tr.
type vocabulary struct {
	tr locales.Translator

	minutesShort string // "min"
	hourUnit     string // "h"
	minuteUnit   string // "m"

	compact [4]string // thousand, million, billion, trillion suffixes

	// relative time; only used for locales not covered by go-humanize
	justNow string
	ago     string // "%s ago" pattern
	in      string // "in %s" pattern
	units   [5]plural
}

// plural maps CLDR cardinal categories to the word form of one unit.
// Categories without an entry fall back to PluralRuleOther.
type plural map[locales.PluralRule]string

const nbsp = "\u00a0"

var english = vocabulary{
	tr:           en.New(),
	minutesShort: "min",
	hourUnit:     "h",
	minuteUnit:   "m",
	compact:      [4]string{"K", "M", "B", "T"},
}

var russian = vocabulary{
	tr:           ru.New(),
	minutesShort: "мин",
	hourUnit:     "ч",
	minuteUnit:   "м",
	compact:      [4]string{nbsp + "тыс.", nbsp + "млн", nbsp + "млрд", nbsp + "трлн"},
	justNow:      "меньше минуты",
	ago:          "%s назад",
	in:           "через %s",
	units: [5]plural{
		{locales.PluralRuleOne: "минуту", locales.PluralRuleFew: "минуты", locales.PluralRuleOther: "минут"},
		{locales.PluralRuleOne: "час", locales.PluralRuleFew: "часа", locales.PluralRuleOther: "часов"},
		{locales.PluralRuleOne: "день", locales.PluralRuleFew: "дня", locales.PluralRuleOther: "дней"},
		{locales.PluralRuleOne: "месяц", locales.PluralRuleFew: "месяца", locales.PluralRuleOther: "месяцев"},
		{locales.PluralRuleOne: "год", locales.PluralRuleFew: "года", locales.PluralRuleOther: "лет"},
	},
}

// month returns the abbreviated month name ("Oct", "окт.").
func (v *vocabulary) month(m time.Month) string {
	return v.tr.MonthAbbreviated(m)
}

// form picks the word form of p for the integer n.
func (v *vocabulary) form(n int64, p plural) string {
	if s, ok := p[v.tr.CardinalPluralRule(float64(n), 0)]; ok {
		return s
	}
	return p[locales.PluralRuleOther]
}
