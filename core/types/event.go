package types

// Event is the flattened form of a ledger event handed to external indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
