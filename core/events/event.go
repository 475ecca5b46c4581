package events

// Event represents a structured ledger state change.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers such as indexers.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events. Components default to it when no emitter
// has been configured.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
