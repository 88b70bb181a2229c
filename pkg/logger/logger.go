package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelDebug LogLevel = "DEBUG"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

type LogFields map[string]interface{}

type Logger interface {
	WithFields(fields LogFields) Logger

	Info(action, message string)
	Debug(action, message string)
	Warn(action, message string)
	Error(action string, err error)
}

// jsonLogger writes one JSON document per line.
type jsonLogger struct {
	mu         *sync.Mutex // shared by every logger derived via WithFields
	out        io.Writer
	service    string
	hostname   string
	debug      bool
	baseFields LogFields
}

type logEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Service   string   `json:"service"`
	Action    string   `json:"action"`
	Message   string   `json:"message"`
	Hostname  string   `json:"hostname"`
	RequestID string   `json:"request_id,omitempty"`
	RideID    string   `json:"ride_id,omitempty"`
	UserID    string   `json:"user_id,omitempty"`

	Error *errorEntry `json:"error,omitempty"`

	Fields LogFields `json:"fields,omitempty"`
}

type errorEntry struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack,omitempty"`
}

// NewLogger creates a structured JSON logger writing to stdout.
func NewLogger(serviceName string) Logger {
	return New(serviceName, os.Stdout, true)
}

// New creates a logger writing to out. Debug entries are dropped unless
// debug is set.
func New(serviceName string, out io.Writer, debug bool) Logger {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return &jsonLogger{
		mu:         &sync.Mutex{},
		out:        out,
		service:    serviceName,
		hostname:   host,
		debug:      debug,
		baseFields: make(LogFields),
	}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return New("discard", io.Discard, false)
}

// WithFields returns a child logger carrying the parent's fields plus the
// given ones. Later keys win.
func (l *jsonLogger) WithFields(fields LogFields) Logger {
	newFields := make(LogFields, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &jsonLogger{
		mu:         l.mu,
		out:        l.out,
		service:    l.service,
		hostname:   l.hostname,
		debug:      l.debug,
		baseFields: newFields,
	}
}

func (l *jsonLogger) Info(action, message string) {
	l.log(LevelInfo, action, message, nil)
}

func (l *jsonLogger) Debug(action, message string) {
	if !l.debug {
		return
	}
	l.log(LevelDebug, action, message, nil)
}

func (l *jsonLogger) Warn(action, message string) {
	l.log(LevelWarn, action, message, nil)
}

// Error logs err together with a trimmed stack trace of the caller.
func (l *jsonLogger) Error(action string, err error) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	l.log(LevelError, action, err.Error(), &errorEntry{
		Msg:   err.Error(),
		Stack: cleanStack(string(buf[:n])),
	})
}

func (l *jsonLogger) log(level LogLevel, action, message string, errData *errorEntry) {
	entry := &logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Service:   l.service,
		Action:    action,
		Message:   message,
		Hostname:  l.hostname,
		Error:     errData,
		Fields:    make(LogFields),
	}

	for k, v := range l.baseFields {
		s, isString := v.(string)
		switch {
		case k == "ride_id" && isString:
			entry.RideID = s
		case k == "request_id" && isString:
			entry.RequestID = s
		case k == "user_id" && isString:
			entry.UserID = s
		default:
			entry.Fields[k] = v
		}
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal log: %v\n", err)
		line = []byte(fmt.Sprintf("%s [%s] %s: %s", entry.Timestamp, entry.Level, entry.Action, entry.Message))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(line))
}

// cleanStack drops runtime, testing and logger frames from a
// runtime.Stack dump.
func cleanStack(stack string) string {
	lines := strings.Split(stack, "\n")
	var cleaned []string

	if len(lines) > 0 {
		cleaned = append(cleaned, lines[0])
	}

	for i := 1; i+1 < len(lines); i += 2 {
		funcName := lines[i]
		filePath := lines[i+1]

		if strings.HasPrefix(funcName, "runtime.") ||
			strings.HasPrefix(funcName, "testing.") ||
			strings.Contains(funcName, "logger.(*jsonLogger)") ||
			strings.Contains(filePath, "runtime/panic.go") {
			continue
		}

		cleaned = append(cleaned, funcName, "    "+strings.TrimSpace(filePath))
	}

	return strings.Join(cleaned, "\n")
}
