package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	cases := map[string]struct {
		in   string
		want zerolog.Level
	}{
		"debug":            {in: "debug", want: zerolog.DebugLevel},
		"info":             {in: "info", want: zerolog.InfoLevel},
		"warn":             {in: "warn", want: zerolog.WarnLevel},
		"warning alias":    {in: "warning", want: zerolog.WarnLevel},
		"error":            {in: "error", want: zerolog.ErrorLevel},
		"fatal":            {in: "fatal", want: zerolog.FatalLevel},
		"panic":            {in: "panic", want: zerolog.PanicLevel},
		"empty defaults":   {in: "", want: zerolog.InfoLevel},
		"unknown defaults": {in: "verbose", want: zerolog.InfoLevel},
		"case folded":      {in: "  DEBUG ", want: zerolog.DebugLevel},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			SetLogLevel(tc.in)
			if got := zerolog.GlobalLevel(); got != tc.want {
				t.Fatalf("SetLogLevel(%q): level = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	cases := map[string]struct {
		in   []string
		want string
	}{
		"first wins":       {in: []string{"a", "b"}, want: "a"},
		"skips empty":      {in: []string{"", "b"}, want: "b"},
		"skips whitespace": {in: []string{"  ", "\t", "c"}, want: "c"},
		"keeps spacing":    {in: []string{" padded "}, want: " padded "},
		"all blank":        {in: []string{"", "  "}, want: ""},
		"no values":        {in: nil, want: ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := FirstNonEmpty(tc.in...); got != tc.want {
				t.Fatalf("FirstNonEmpty(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
