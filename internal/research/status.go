package research

import (
	"context"

	"github.com/insightai/insight/internal/domain"
)

// Status is the health-check view of the dispatcher.
type Status struct {
	Status         string              `json:"status"`
	DefaultMode    domain.Mode         `json:"defaultMode"`
	AvailableModes []domain.Mode       `json:"availableModes"`
	Session        domain.SessionCheck `json:"session"`
}

// AvailableModes lists the modes a request can currently resolve to.
func (d *Dispatcher) AvailableModes() []domain.Mode {
	modes := []domain.Mode{domain.ModeAuto}
	if d.RouterConfigured() {
		modes = append(modes, domain.ModeRouter)
	}
	if d.Web3Configured() {
		modes = append(modes, domain.ModeWeb3)
	}
	return append(modes, domain.ModeDemo)
}

// Status reports configuration and probes the default session. Lookup
// problems are reported in Session, never returned.
func (d *Dispatcher) Status(ctx context.Context) Status {
	check := domain.SessionCheck{
		ID:    d.cfg.SessionID,
		Error: domain.ErrLedgerUnavailable.Error(),
	}
	if d.ledger != nil {
		check = d.ledger.VerifySession(ctx, d.cfg.SessionID)
		check.ID = d.cfg.SessionID
	}
	return Status{
		Status:         "ok",
		DefaultMode:    d.cfg.DefaultMode,
		AvailableModes: d.AvailableModes(),
		Session:        check,
	}
}
