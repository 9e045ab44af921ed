package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSlogWriter_Write(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantLogs bool
	}{
		{name: "line", input: "Applying: 20250101_init.sql\n", wantLogs: true},
		{name: "no newline", input: "Applying", wantLogs: true},
		{name: "empty", input: "", wantLogs: false},
		{name: "only newline", input: "\n", wantLogs: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := NewSlogWriter(slog.New(slog.NewTextHandler(&buf, nil)))

			n, err := w.Write([]byte(tt.input))
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			if n != len(tt.input) {
				t.Errorf("Write() n = %d, want %d", n, len(tt.input))
			}

			if got := buf.Len() > 0; got != tt.wantLogs {
				t.Errorf("Write() logged = %v, want %v (%q)", got, tt.wantLogs, buf.String())
			}
		})
	}
}

func TestErrAttr(t *testing.T) {
	t.Parallel()

	err := errors.New("broker unreachable")
	attr := ErrAttr(err)

	if attr.Key != "error" {
		t.Errorf("ErrAttr() Key = %v, want error", attr.Key)
	}

	if attr.Value.Any() != err {
		t.Errorf("ErrAttr() Value = %v, want %v", attr.Value.Any(), err)
	}
}

func TestSlogReplacer(t *testing.T) {
	t.Parallel()

	ts := SlogReplacer(nil, slog.Time("t", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)))
	if ts.Value.String() != "2024-01-15 10:30:45" {
		t.Errorf("time = %v", ts.Value.String())
	}

	d := SlogReplacer(nil, slog.Duration("d", 5*time.Second+250*time.Millisecond))
	if d.Value.Kind() != slog.KindString || d.Value.String() != "5.25s" {
		t.Errorf("duration = %v (%v)", d.Value.String(), d.Value.Kind())
	}

	n := SlogReplacer(nil, slog.Int("n", 42))
	if n.Value.Kind() != slog.KindInt64 || n.Value.Int64() != 42 {
		t.Errorf("int attr changed: %v", n)
	}
}

func TestLogOnError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	LogOnError(l, func() error { return nil }, "close ok")

	if buf.Len() > 0 {
		t.Fatalf("LogOnError() logged on success: %s", buf.String())
	}

	LogOnError(l, func() error { return errors.New("disk full") }, "failed to close database")

	out := buf.String()
	if !strings.Contains(out, "failed to close database") || !strings.Contains(out, "disk full") {
		t.Errorf("LogOnError() output = %s", out)
	}
}
