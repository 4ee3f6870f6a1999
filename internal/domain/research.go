package domain

import "time"

// Parsed is model output split into a summary and bullet points.
type Parsed struct {
	Summary      string   `json:"summary"`
	BulletPoints []string `json:"bulletPoints"`
}

// ResearchResult is the assembled answer returned to the caller. It is built
// once per request and never mutated afterwards.
type ResearchResult struct {
	DispatchID      string    `json:"dispatchId"`
	Query           string    `json:"query"`
	Summary         string    `json:"summary"`
	BulletPoints    []string  `json:"bulletPoints"`
	Sources         []string  `json:"sources"`
	SessionID       string    `json:"sessionId"`
	TaskID          string    `json:"taskId"`
	TxHash          string    `json:"txHash,omitempty"`
	Verified        bool      `json:"verified"`
	IsDemo          bool      `json:"isDemo"`
	Method          Mode      `json:"method"`
	RequestedMode   Mode      `json:"requestedMode"`
	Model           string    `json:"model"`
	FallbackReason  string    `json:"fallbackReason,omitempty"`
	VerificationURL string    `json:"verificationUrl,omitempty"`
	Cached          bool      `json:"cached,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
