// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
)

const (
	asyncBuffer  = 4096
	asyncWorkers = 2
)

// New returns a logger writing to stdout. Every record carries the service
// name, plus request, session and trace ids when the context has them.
// The Closer flushes the async queue and is a no-op otherwise.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(h, asyncBuffer, asyncWorkers)
		h, closer = ah, ah
	}
	return slog.New(&contextHandler{inner: h}).With("service", cfg.Service), closer
}

// parseLevel accepts slog level names, offsets like "debug+2" and "warning".
// Anything else is info.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
