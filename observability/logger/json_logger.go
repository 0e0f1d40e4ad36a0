// Package logger writes structured log entries as JSON lines. Every entry
// carries timestamp, level, service, env, hostname and message, followed by
// the request, trace and download ids found on the context.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"streamrelay/observability/types"
)

// LogLevel orders entries by severity.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
// Anything else is info.
func ParseLevel(level string) LogLevel {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		return WarnLevel
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i)
		}
	}
	return InfoLevel
}

func (l LogLevel) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// contextIDs are lifted from the context into each entry.
var contextIDs = []types.ContextKey{
	types.TraceIDKey,
	types.RequestIDKey,
	types.DownloadIDKey,
}

// sink is the output shared by a logger and all of its children.
type sink struct {
	mu      sync.Mutex
	out     io.Writer
	service string
	env     string
	host    string
	min     LogLevel
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(line)
}

// JSONLogger implements types.Logger. Concurrent entries never interleave.
type JSONLogger struct {
	sink   *sink
	fields types.Fields
}

// New returns a logger writing to output, or stdout when output is nil.
// fields are added to every entry.
func New(serviceName, environment, logLevel string, output io.Writer, fields types.Fields) *JSONLogger {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	if output == nil {
		output = os.Stdout
	}

	return &JSONLogger{
		sink: &sink{
			out:     output,
			service: serviceName,
			env:     environment,
			host:    host,
			min:     ParseLevel(logLevel),
		},
		fields: fields,
	}
}

func (l *JSONLogger) Debug(ctx context.Context, msg string, fields types.Fields) {
	l.emit(ctx, DebugLevel, msg, nil, fields)
}

func (l *JSONLogger) Info(ctx context.Context, msg string, fields types.Fields) {
	l.emit(ctx, InfoLevel, msg, nil, fields)
}

func (l *JSONLogger) Warn(ctx context.Context, msg string, fields types.Fields) {
	l.emit(ctx, WarnLevel, msg, nil, fields)
}

// Error adds "error" and its dynamic type as "error_type".
func (l *JSONLogger) Error(ctx context.Context, msg string, err error, fields types.Fields) {
	l.emit(ctx, ErrorLevel, msg, err, fields)
}

// WithFields returns a child writing to the same sink. On a key clash the
// child's value wins.
func (l *JSONLogger) WithFields(fields types.Fields) types.Logger {
	merged := make(types.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &JSONLogger{sink: l.sink, fields: merged}
}

// emit layers, lowest precedence first: standard keys, context ids,
// logger fields, call fields.
func (l *JSONLogger) emit(ctx context.Context, level LogLevel, msg string, err error, fields types.Fields) {
	s := l.sink
	if level < s.min {
		return
	}

	entry := types.Fields{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"service":   s.service,
		"env":       s.env,
		"hostname":  s.host,
		"message":   msg,
	}
	if ctx != nil {
		for _, key := range contextIDs {
			if id, _ := ctx.Value(key).(string); id != "" {
				entry[string(key)] = id
			}
		}
	}
	if err != nil {
		entry["error"] = err.Error()
		entry["error_type"] = fmt.Sprintf("%T", err)
	}
	for _, layer := range []types.Fields{l.fields, fields} {
		for k, v := range layer {
			entry[k] = v
		}
	}

	line, mErr := json.Marshal(entry)
	if mErr != nil {
		return
	}
	s.write(append(line, '\n'))
}
