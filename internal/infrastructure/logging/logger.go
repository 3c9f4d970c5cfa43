package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// Format selects the rendering of log entries.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Options configures the zerolog adapter.
type Options struct {
	Writer    io.Writer
	Level     string
	Format    Format
	Layer     string
	Component string
	Fields    map[string]interface{}
}

// Logger implements ports.Logger using zerolog.
type Logger struct {
	base   zerolog.Logger
	fields []interface{}
	layer  string
}

// New creates a Logger adapter with the supplied options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var output io.Writer = writer
	switch opts.Format {
	case "", FormatJSON:
	case FormatConsole:
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.RFC3339
		output = console
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	builder := zerolog.New(output).Level(level).With().Timestamp()
	for _, pair := range pairs(mapToFields(opts.Fields)) {
		builder = builder.Interface(pair.key, pair.value)
	}

	fields := make([]interface{}, 0, 2)
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}
	layer := opts.Layer
	if layer == "" {
		layer = "infrastructure"
	}

	return &Logger{
		base:   builder.Logger(),
		fields: fields,
		layer:  layer,
	}, nil
}

// Discard returns a Logger on zerolog.Nop, for tests and callers that need a
// non-nil logger but no output.
func Discard() *Logger {
	return &Logger{base: zerolog.Nop(), layer: "infrastructure"}
}

// Debug emits a debug log entry.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.DebugLevel, msg, fields...)
}

// Info emits an info log entry.
func (l *Logger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.InfoLevel, msg, fields...)
}

// Warn emits a warning log entry.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.WarnLevel, msg, fields...)
}

// Error emits an error log entry.
func (l *Logger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zerolog.ErrorLevel, msg, fields...)
}

// With derives a new logger with persistent fields.
func (l *Logger) With(fields ...interface{}) ports.Logger {
	if l == nil {
		return Discard()
	}
	next := make([]interface{}, len(l.fields), len(l.fields)+len(fields))
	copy(next, l.fields)
	next = append(next, fields...)
	return &Logger{
		base:   l.base,
		fields: next,
		layer:  l.layer,
	}
}

func (l *Logger) log(ctx context.Context, level zerolog.Level, msg string, fields ...interface{}) {
	if l == nil {
		return
	}
	event := l.base.WithLevel(level)
	if event == nil {
		return
	}

	extras := map[string]interface{}{
		"layer": l.layer,
	}
	if id := ports.GetCorrelationID(ctx); id != "" {
		extras["correlation_id"] = id
	}

	for _, pair := range pairs(mergeFields(l.fields, fields, extras)) {
		switch v := pair.value.(type) {
		case error:
			event = event.AnErr(pair.key, v)
		case fmt.Stringer:
			event = event.Str(pair.key, v.String())
		default:
			event = event.Interface(pair.key, v)
		}
	}
	event.Msg(msg)
}

type field struct {
	key   string
	value interface{}
}

func pairs(values []interface{}) []field {
	out := make([]field, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		out = append(out, field{key: key, value: values[i+1]})
	}
	return out
}

func mapToFields(input map[string]interface{}) []interface{} {
	if len(input) == 0 {
		return nil
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := make([]interface{}, 0, len(input)*2)
	for _, k := range keys {
		res = append(res, k, input[k])
	}
	return res
}

// mergeFields flattens persistent fields, call-site fields and extras into a
// single key/value list. Later values win; first-seen order is kept.
func mergeFields(base []interface{}, additions []interface{}, extras map[string]interface{}) []interface{} {
	store := make(map[string]interface{})
	order := make([]string, 0)

	addPair := func(key string, value interface{}) {
		if key == "" {
			return
		}
		if _, exists := store[key]; !exists {
			order = append(order, key)
		}
		store[key] = value
	}

	for _, pair := range pairs(base) {
		addPair(pair.key, pair.value)
	}
	for _, pair := range pairs(additions) {
		addPair(pair.key, pair.value)
	}
	if len(extras) > 0 {
		extraKeys := make([]string, 0, len(extras))
		for key, value := range extras {
			if value == nil {
				continue
			}
			if s, ok := value.(string); ok && s == "" {
				continue
			}
			extraKeys = append(extraKeys, key)
		}
		sort.Strings(extraKeys)
		for _, key := range extraKeys {
			addPair(key, extras[key])
		}
	}

	result := make([]interface{}, 0, len(order)*2)
	for _, key := range order {
		result = append(result, key, store[key])
	}
	return result
}

var _ ports.Logger = (*Logger)(nil)
