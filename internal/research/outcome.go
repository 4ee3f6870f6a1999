package research

import "github.com/insightai/insight/internal/domain"

// OutcomeKind tells how a dispatch produced its answer.
type OutcomeKind int

const (
	// OutcomeSuccess means a real backend answered.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeDegraded means a backend was tried, failed, and the demo
	// answer was substituted.
	OutcomeDegraded
	// OutcomeDemo means the demo path was selected up front.
	OutcomeDemo
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeDemo:
		return "demo"
	}
	return "unknown"
}

// Outcome is what a single execution path produced. Exactly one of the
// constructors below builds it.
type Outcome struct {
	Kind      OutcomeKind
	Attempted domain.Mode // path that was tried
	Path      domain.Mode // path whose data is carried
	Reason    error       // set for OutcomeDegraded
	Data      domain.Parsed
	TaskID    string
	TxHash    string
}

// Success wraps data returned by a router or web3 path.
func Success(path domain.Mode, data domain.Parsed, taskID, txHash string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Attempted: path, Path: path, Data: data, TaskID: taskID, TxHash: txHash}
}

// Degraded wraps demo data substituted after attempted failed with reason.
func Degraded(attempted domain.Mode, reason error, demo domain.Parsed) Outcome {
	return Outcome{Kind: OutcomeDegraded, Attempted: attempted, Path: domain.ModeDemo, Reason: reason, Data: demo}
}

// Demo wraps demo data for a request that resolved to the demo path.
func Demo(demo domain.Parsed) Outcome {
	return Outcome{Kind: OutcomeDemo, Attempted: domain.ModeDemo, Path: domain.ModeDemo, Data: demo}
}

// Verified reports whether a real backend produced the data.
func (o Outcome) Verified() bool { return o.Path != domain.ModeDemo }
