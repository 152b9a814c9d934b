package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"cloudpico-notifier/internal/config"
)

func New(base config.Base, version string, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, base, version, appName)
}

func newWithWriter(w io.Writer, base config.Base, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      base.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       base.LogLevel,
		ReplaceAttr: durationsAsText,
	})
	attrs := []any{
		"app", appName,
		"version", version,
		"env", base.AppEnv,
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, "host", host)
	}
	return slog.New(h).With(attrs...)
}

// durationsAsText writes durations as "15s" instead of nanoseconds.
func durationsAsText(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.String(a.Key, a.Value.Duration().String())
	}
	return a
}
