package sysutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel_AllVariants(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel}, // case + trim
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel}, // empty -> info
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel}, // alias
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel}, // default
	}

	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	trues := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	falses := []string{"", "0", "false", "no", "off", "n", "  ", "random"}

	for _, v := range trues {
		if !IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = false; want true", v)
		}
	}
	for _, v := range falses {
		if IsTruthy(v) {
			t.Fatalf("IsTruthy(%q) = true; want false", v)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	// no args -> ""
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("FirstNonEmpty() = %q; want \"\"", got)
	}
	// only empties -> ""
	if got := FirstNonEmpty(" ", "\t", "\n"); got != "" {
		t.Fatalf("FirstNonEmpty(empties) = %q; want \"\"", got)
	}
	// picks first non-empty (preserves original spacing)
	if got := FirstNonEmpty("   ", "  hello  ", "world"); got != "  hello  " {
		t.Fatalf("FirstNonEmpty(...) = %q; want %q", got, "  hello  ")
	}
	// first already non-empty
	if got := FirstNonEmpty("alpha", "beta"); got != "alpha" {
		t.Fatalf("FirstNonEmpty(...) = %q; want %q", got, "alpha")
	}
}

func TestSetupLogger_JSONAndFile(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	origLogger := log.Logger
	origOut := stdout
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
		stdout = origOut
	})

	var buf bytes.Buffer
	stdout = &buf
	path := filepath.Join(t.TempDir(), "dashboard.log")

	closeFn := SetupLogger(LogOptions{Level: "debug", File: path})
	log.Debug().Str("k", "v").Msg("hello")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("level=%v", zerolog.GlobalLevel())
	}
	if !strings.Contains(buf.String(), `"k":"v"`) || !strings.Contains(buf.String(), `"message":"hello"`) {
		t.Fatalf("stdout=%q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Fatalf("file=%q", data)
	}
}

func TestSetupLogger_Pretty(t *testing.T) {
	origLogger := log.Logger
	origOut := stdout
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = origLogger
		stdout = origOut
		zerolog.SetGlobalLevel(origLevel)
	})

	var buf bytes.Buffer
	stdout = &buf
	closeFn := SetupLogger(LogOptions{Level: "info", Pretty: true})
	log.Info().Msg("pretty")
	_ = closeFn()

	out := buf.String()
	if !strings.Contains(out, "pretty") || strings.Contains(out, `"message"`) {
		t.Fatalf("expected console format, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("ERROR") != zerolog.ErrorLevel || ParseLevel("nope") != zerolog.InfoLevel {
		t.Fatalf("ParseLevel mapping unexpected")
	}
}
