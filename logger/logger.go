// Package logger wraps log/slog with a colored console handler shared by the whole process.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	mu    sync.RWMutex
	level = &slog.LevelVar{}
	log   = newLogger(os.Stderr, true)
)

func newLogger(w io.Writer, detectTTY bool) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok && detectTTY {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

// ParseLevel converts a level name to a slog.Level. Unknown names return false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Init sets the minimum level and installs the logger as slog's default.
func Init(levelName string) {
	lvl, _ := ParseLevel(levelName)
	level.Set(lvl)
	mu.RLock()
	defer mu.RUnlock()
	slog.SetDefault(log)
}

// SetOutput redirects log output. Color is only used for terminals.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w, true)
	slog.SetDefault(log)
}

// L returns the current logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

// InfoContext logs at info level with request-scoped attributes taken from ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	L().InfoContext(ctx, msg, args...)
}

// ErrorContext logs at error level with request-scoped attributes taken from ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	L().ErrorContext(ctx, msg, args...)
}
