package logger

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger emits one JSON line per event. The action is a stable
// machine-readable tag, the request ID carries the order number or
// zone ID the event belongs to.
type Logger interface {
	Info(action, message, requestID string, details map[string]interface{})
	Debug(action, message, requestID string, details map[string]interface{})
	Error(action, message, requestID string, details map[string]interface{}, err error)
}

type jsonLogger struct {
	service string
	station string
	debug   bool
	mu      sync.Mutex
	out     io.Writer
}

// New returns a stdout logger for the named service (terminal,
// kds-display, customer-display). Debug lines are emitted only when
// POS_DEBUG is set.
func New(service string) Logger {
	station, _ := os.Hostname()
	return &jsonLogger{
		service: service,
		station: station,
		debug:   os.Getenv("POS_DEBUG") != "",
		out:     os.Stdout,
	}
}

func (l *jsonLogger) Info(action, message, requestID string, details map[string]interface{}) {
	l.write("INFO", action, message, requestID, details, nil)
}

func (l *jsonLogger) Debug(action, message, requestID string, details map[string]interface{}) {
	if !l.debug {
		return
	}
	l.write("DEBUG", action, message, requestID, details, nil)
}

func (l *jsonLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
	l.write("ERROR", action, message, requestID, details, err)
}

func (l *jsonLogger) write(level, action, message, requestID string, details map[string]interface{}, err error) {
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Service:   l.service,
		Station:   l.station,
		RequestID: requestID,
		Action:    action,
		Message:   message,
		Details:   details,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	json.NewEncoder(l.out).Encode(entry)
}
