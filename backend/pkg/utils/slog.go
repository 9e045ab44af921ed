package utils

import (
	"bytes"
	"log/slog"
	"time"
)

// ErrAttr returns the conventional slog attribute for an error.
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

// SlogReplacer renders time and duration attributes as short human-readable strings.
func SlogReplacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		return slog.String(a.Key, a.Value.Time().Format(time.DateTime))
	case slog.KindDuration:
		return slog.String(a.Key, a.Value.Duration().String())
	default:
		return a
	}
}

// LogOnError runs fn and logs msg if it fails. Meant for deferred Close calls.
func LogOnError(l *slog.Logger, fn func() error, msg string) {
	if err := fn(); err != nil {
		l.Error(msg, ErrAttr(err))
	}
}

// SlogWriter adapts a slog.Logger to io.Writer, one log record per write.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter returns an io.Writer that logs each write at info level.
func NewSlogWriter(l *slog.Logger) *SlogWriter {
	return &SlogWriter{logger: l}
}

func (w *SlogWriter) Write(p []byte) (int, error) {
	msg := bytes.TrimRight(p, "\n")
	if len(msg) > 0 {
		w.logger.Info(string(msg))
	}

	return len(p), nil
}
