// Package logger holds the process-wide zerolog logger.
//
// cmd/ binaries call Init once; library code receives a zerolog.Logger through
// its constructor, usually one obtained from Component.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures Init.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Anything else means info.
	Level string
	// Pretty switches to zerolog's console writer. Production keeps JSON.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service, when set, is added to every entry as "service".
	Service string
	// Caller adds file:line of the call site.
	Caller bool
}

var (
	mu       sync.Mutex
	instance *zerolog.Logger
)

// Init builds the process logger. Only the first call has an effect; later
// calls return the logger built by the first.
func Init(opts Options) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if instance == nil {
		l := build(opts)
		instance = &l
	}
	return *instance
}

func build(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Get returns the process logger. It panics before Init.
func Get() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if instance == nil {
		panic("logger: Get() called before Init()")
	}
	return *instance
}

// Component returns the process logger with a "component" field.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset forgets the process logger so the next Init builds a new one. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	instance = nil
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	switch lvl, err := zerolog.ParseLevel(s); {
	case err != nil, lvl == zerolog.NoLevel, lvl > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return lvl
	}
}
