package takeover

import (
	"fmt"
	"time"

	"github.com/axeq/takeoverme/internal/probe"
	"github.com/axeq/takeoverme/internal/resolver"
)

// Finding is a subdomain answering 404 whose CNAME matches a fingerprint
type Finding struct {
	Subdomain   string    `json:"subdomain"`
	CNAME       string    `json:"cname"`
	Fingerprint string    `json:"fingerprint"`
	Status      int       `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// String is the line written to the findings file
func (f Finding) String() string {
	return fmt.Sprintf("TAKEOVER POSSIBLE AT %s (CNAME: %s)", f.Subdomain, f.CNAME)
}

// State is the terminal state of one evaluation
type State string

const (
	StateFinding     State = "finding"
	StateActive      State = "active"
	StateNotFound    State = "not_found"
	StateUnreachable State = "unreachable"
	StateInterrupted State = "interrupted"
	StateFailed      State = "failed"
)

// Outcome records everything observed while evaluating one subdomain.
// CNAME is nil unless the probe saw a 404.
type Outcome struct {
	Subdomain string
	Probe     probe.Result
	CNAME     *resolver.Outcome
	Finding   *Finding
	SinkErr   error
	Err       error
}

// State classifies the outcome
func (o Outcome) State() State {
	switch {
	case o.Err != nil:
		return StateFailed
	case o.Finding != nil:
		return StateFinding
	}
	switch o.Probe.Kind {
	case probe.Interrupted:
		return StateInterrupted
	case probe.Unreachable:
		return StateUnreachable
	}
	if o.Probe.NotFound() {
		return StateNotFound
	}
	return StateActive
}
