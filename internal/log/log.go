package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Config captures options for the package-level logger.
type Config struct {
	Level   Level     // minimum level; INFO when empty
	Output  io.Writer // defaults to os.Stderr
	Service string    // attached to every entry; "slotcal" when empty
}

var (
	mu     sync.RWMutex
	logger = newLogger(Config{})
)

func newLogger(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	service := cfg.Service
	if service == "" {
		service = "slotcal"
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(out).With().
		Timestamp().
		Str("service", service).
		Logger().
		Level(zerologLevel(cfg.Level))
}

// Configure replaces the package-level logger. Safe to call more than once.
func Configure(cfg Config) {
	l := newLogger(cfg)
	mu.Lock()
	logger = l
	mu.Unlock()
}

func SetLevel(l Level) {
	mu.Lock()
	logger = logger.Level(zerologLevel(l))
	mu.Unlock()
}

// ParseLevel maps config strings ("debug", "info", ...) to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	current().Debug().Fields(kv).Msg(msg)
}

func Info(msg string, kv ...any) {
	current().Info().Fields(kv).Msg(msg)
}

func Warn(msg string, kv ...any) {
	current().Warn().Fields(kv).Msg(msg)
}

func Error(msg string, err error, kv ...any) {
	current().Error().Err(err).Fields(kv).Msg(msg)
}

func current() *zerolog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return &l
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
