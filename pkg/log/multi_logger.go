package log

import "sync"

// MultiLogger fans events out to several loggers, typically a SlogAdapter
// for the console and a FileLogger for the trace file.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to every configured logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Len returns the number of configured loggers.
func (m *MultiLogger) Len() int {
	return len(m.loggers)
}

// Recorder keeps events in memory. Tests and the poslog stats command use it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Log appends the event.
func (r *Recorder) Log(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Requests returns the recorded request events in order.
func (r *Recorder) Requests() []RequestEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RequestEvent
	for _, e := range r.events {
		if e.Request != nil {
			out = append(out, *e.Request)
		}
	}
	return out
}

var (
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*Recorder)(nil)
)
