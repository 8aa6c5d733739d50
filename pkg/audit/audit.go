package audit

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/argus-mc/argus/pkg/log"
)

// Entry is one structured audit record.
type Entry struct {
	Action      string
	Subject     string
	Actor       string
	Description string
	Metadata    map[string]string
	At          time.Time
}

// String renders the entry in the em-dash joined form mirrored to the process
// logger.
func (e Entry) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Action, e.Subject, e.Actor, e.Description} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	line := strings.Join(parts, " — ")
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%s", k, e.Metadata[k]))
		}
		line += " [" + strings.Join(kv, " ") + "]"
	}
	return line
}

// Dispatcher forwards entries to an external sink (the Discord log channel,
// the archive). It must not be relied on for durability.
type Dispatcher func(Entry)

// Logger is an append-only audit stream with a single pluggable dispatcher
// slot. Dispatch failures never propagate to the caller.
type Logger struct {
	dispatcher atomic.Pointer[Dispatcher]
}

// NewLogger creates an audit logger with no dispatcher attached.
func NewLogger() *Logger {
	return &Logger{}
}

// SetDispatcher swaps the dispatcher atomically. A nil dispatcher detaches.
func (l *Logger) SetDispatcher(d Dispatcher) {
	if d == nil {
		l.dispatcher.Store(nil)
		return
	}
	l.dispatcher.Store(&d)
}

// Log records a structured entry: mirrored to the process logger, then handed
// to the dispatcher if one is attached.
func (l *Logger) Log(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	log.Info(log.Application, "[audit] "+e.String())

	d := l.dispatcher.Load()
	if d == nil {
		return
	}
	l.dispatch(*d, e)
}

// Event is the convenience form of Log.
func (l *Logger) Event(action, subject, actor, description string, metadata map[string]string) {
	l.Log(Entry{
		Action:      action,
		Subject:     subject,
		Actor:       actor,
		Description: description,
		Metadata:    metadata,
	})
}

// Message records an unstructured legacy entry under the "audit" action.
func (l *Logger) Message(message string) {
	l.Log(Entry{Action: "audit", Description: message})
}

func (l *Logger) dispatch(d Dispatcher, e Entry) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("audit dispatcher panicked: %v", r)
		}
	}()
	d(e)
}
