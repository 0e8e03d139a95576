package log

import "sync"

// Recorder keeps every event in memory.
// Tests use it to assert on lifecycle and misuse events without parsing text.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Log stores the event.
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

// Filter returns the recorded events matching f.
func (r *Recorder) Filter(f Filter) []Event {
	var out []Event
	for _, e := range r.Events() {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Misuses returns the recorded misuse events for operation.
// An empty operation matches every misuse event.
func (r *Recorder) Misuses(operation string) []MisuseEvent {
	var out []MisuseEvent
	for _, e := range r.Events() {
		if e.Misuse == nil {
			continue
		}
		if operation == "" || e.Misuse.Operation == operation {
			out = append(out, *e.Misuse)
		}
	}
	return out
}

// Commands returns the bus commands of recorded frame events in order.
func (r *Recorder) Commands(dir Direction) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Frame != nil && e.Direction == dir {
			out = append(out, e.Frame.Command)
		}
	}
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

var _ Logger = (*Recorder)(nil)
