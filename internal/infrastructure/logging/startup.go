package logging

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

const defaultStartupLimit = 256

type bufferedEntry struct {
	ctx    context.Context
	level  string
	msg    string
	fields []interface{}
}

type startupBuffer struct {
	mu      sync.Mutex
	limit   int
	entries []bufferedEntry
}

// StartupLogger holds entries emitted before the configured logger exists
// (for example while the gate config that sets the log level is parsed) and
// replays them once Flush is called. Oldest entries are dropped past limit.
type StartupLogger struct {
	buffer *startupBuffer
	fields []interface{}
}

// NewStartupLogger creates a buffering logger keeping at most limit entries.
func NewStartupLogger(limit int) *StartupLogger {
	if limit <= 0 {
		limit = defaultStartupLimit
	}
	return &StartupLogger{buffer: &startupBuffer{limit: limit}}
}

// Debug implements ports.Logger.
func (l *StartupLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.add(ctx, "debug", msg, fields)
}

// Info implements ports.Logger.
func (l *StartupLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.add(ctx, "info", msg, fields)
}

// Warn implements ports.Logger.
func (l *StartupLogger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.add(ctx, "warn", msg, fields)
}

// Error implements ports.Logger.
func (l *StartupLogger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.add(ctx, "error", msg, fields)
}

// With returns a child sharing the same buffer.
func (l *StartupLogger) With(fields ...interface{}) ports.Logger {
	next := append(append([]interface{}{}, l.fields...), fields...)
	return &StartupLogger{buffer: l.buffer, fields: next}
}

// Len returns the number of buffered entries.
func (l *StartupLogger) Len() int {
	l.buffer.mu.Lock()
	defer l.buffer.mu.Unlock()
	return len(l.buffer.entries)
}

// Flush replays buffered entries in order through delegate and empties the buffer.
func (l *StartupLogger) Flush(delegate ports.Logger) {
	if l == nil || delegate == nil {
		return
	}
	b := l.buffer
	b.mu.Lock()
	entries := b.entries
	b.entries = nil
	b.mu.Unlock()

	for _, entry := range entries {
		switch entry.level {
		case "debug":
			delegate.Debug(entry.ctx, entry.msg, entry.fields...)
		case "warn":
			delegate.Warn(entry.ctx, entry.msg, entry.fields...)
		case "error":
			delegate.Error(entry.ctx, entry.msg, entry.fields...)
		default:
			delegate.Info(entry.ctx, entry.msg, entry.fields...)
		}
	}
}

func (l *StartupLogger) add(ctx context.Context, level, msg string, fields []interface{}) {
	if l == nil || l.buffer == nil {
		return
	}
	entry := bufferedEntry{
		ctx:    ctx,
		level:  level,
		msg:    msg,
		fields: append(append([]interface{}{}, l.fields...), fields...),
	}

	b := l.buffer
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == b.limit {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = entry
		return
	}
	b.entries = append(b.entries, entry)
}

var _ ports.Logger = (*StartupLogger)(nil)
