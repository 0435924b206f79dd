// Package logging builds the process-wide *slog.Logger.
//
// Every component receives the logger through its constructor. main also
// installs it as the slog default for the response encoder's last-resort log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Options selects the level, encoding and optional file sink.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Dir    string // directory for rotated log files; empty disables
}

// New returns a logger writing to stdout and, when opts.Dir is set, to a
// daily rotated file under that directory. The returned io.Closer releases
// the file sink and is safe to call when there is none.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: creating %s: %w", opts.Dir, err)
		}
		rl, err := rotatelogs.New(
			filepath.Join(opts.Dir, "profile-api.%Y%m%d.log"),
			rotatelogs.WithLinkName(filepath.Join(opts.Dir, "profile-api.log")),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(7*24*time.Hour),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: opening rotated log: %w", err)
		}
		w = io.MultiWriter(os.Stdout, rl)
		closer = rl
	}

	return slog.New(newHandler(w, opts)), closer, nil
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if strings.EqualFold(opts.Format, "text") {
		return slog.NewTextHandler(w, ho)
	}
	return slog.NewJSONHandler(w, ho)
}

// ParseLevel maps a level name to slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard is a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
