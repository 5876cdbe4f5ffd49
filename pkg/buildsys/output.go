package buildsys

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type logKey struct{}

func logger(ctx context.Context) *zerolog.Logger {
	value := ctx.Value(logKey{})
	if value == nil {
		return &log.Logger
	}

	return value.(*zerolog.Logger)
}

// Log returns the logger attached to ctx. Falls back to the global zerolog logger.
func Log(ctx context.Context) *zerolog.Logger {
	return logger(ctx)
}

// WithLogger attaches the given logger to the context
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

// lineWriter forwards every complete line written to it as a separate log event.
type lineWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
	redact func(string) string
	buffer bytes.Buffer
	lock   sync.Mutex
}

func newLineWriter(logger *zerolog.Logger, level zerolog.Level, redact func(string) string) *lineWriter {
	return &lineWriter{logger: logger, level: level, redact: redact}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.buffer.Write(p)
	for {
		line, err := w.buffer.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buffer.Reset()
			w.buffer.WriteString(line)
			break
		}

		w.emit(line[:len(line)-1])
	}

	return len(p), nil
}

// Flush logs any pending partial line.
func (w *lineWriter) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.buffer.Len() > 0 {
		w.emit(w.buffer.String())
		w.buffer.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if w.redact != nil {
		line = w.redact(line)
	}

	w.logger.WithLevel(w.level).Msg(line)
}
