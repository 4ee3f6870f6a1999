package domain

// Session is a pre-provisioned execution context on the ledger. It names a
// model and bounds the pool of nodes that may serve its tasks.
type Session struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	Metadata        string `json:"metadata"`
	Owner           string `json:"owner"`
	Active          bool   `json:"active"`
	ModelIdentifier uint64 `json:"model_identifier"`
	MinNodes        uint64 `json:"min_nodes"`
	MaxNodes        uint64 `json:"max_nodes"`
}

// SessionCheck is the outcome of a session validity probe. It never carries
// an error value, only the message, so it can be reported in-band.
type SessionCheck struct {
	ID    uint64  `json:"id"`
	Valid bool    `json:"valid"`
	Name  string  `json:"name,omitempty"`
	Model *uint64 `json:"model,omitempty"`
	Error string  `json:"error,omitempty"`
}
