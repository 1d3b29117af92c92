package types

// Event represents a typed event emitted during state transitions. ID carries
// a correlation identifier assigned when the event is captured.
type Event struct {
	ID         string            `json:"id,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
