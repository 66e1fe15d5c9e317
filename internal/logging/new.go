package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
)

// Supported values for the log mode setting.
const (
	ModeSlog   = "slog"
	ModeZap    = "zap"
	ModeZapDev = "zap-dev"
)

// New builds a Logger for the given mode. slog output goes to w as JSON;
// zap modes use zap's production or development presets on stderr.
func New(mode string, w io.Writer) (Logger, error) {
	switch mode {
	case "", ModeSlog:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil))), nil
	case ModeZap:
		l, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("zap init: %w", err)
		}
		return NewZapLogger(l), nil
	case ModeZapDev:
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("zap init: %w", err)
		}
		return NewZapLogger(l), nil
	default:
		return nil, fmt.Errorf("unknown log mode %q", mode)
	}
}

// Nop returns a Logger that discards everything. Handy in tests.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
