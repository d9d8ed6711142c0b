package logging

import (
	"log"
	"log/slog"
	"os"
)

var Logger *slog.Logger

var level = new(slog.LevelVar) // dynamic level if we ever want to adjust it

func Init() {
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		level.Set(slog.LevelDebug)
	}
	Logger = slog.New(handler)
	Info = Logger.Info
	Error = Logger.Error
	Warn = Logger.Warn
	Debug = Logger.Debug
}

func init() {
	Init()
}

// Shortcut helpers (optional)
var (
	Info  = Logger.Info
	Error = Logger.Error
	Warn  = Logger.Warn
	Debug = Logger.Debug
)

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	Logger.Error(msg, args...)
	os.Exit(1)
}

// WrapSlog adapts the slog logger to the stdlib *log.Logger that the
// goburrow modbus handlers expect for their debug output.
func WrapSlog(key, value string) *log.Logger {
	return log.New(&slogWriter{key: key, value: value}, "", 0)
}

type slogWriter struct {
	key   string
	value string
}

func (w *slogWriter) Write(p []byte) (int, error) {
	Logger.Debug(string(p), w.key, w.value)
	return len(p), nil
}
