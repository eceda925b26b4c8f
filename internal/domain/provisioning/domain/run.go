// Package domain provides the core domain model for site provisioning.
// A provisioning run drives one DeploymentRecord through the run state
// machine and mutates the owning ClientRecord alongside it.
package domain

import "time"

// RunState is the state of a provisioning run and of the DeploymentRecord
// it owns. Success and failed are terminal; a new run against the same
// client starts a fresh record from pending.
type RunState string

const (
	StatePending         RunState = "pending"
	StateResolvingConfig RunState = "resolving_config"
	StateCreatingClient  RunState = "creating_client"
	StateProvisioning    RunState = "provisioning"
	StateVerifying       RunState = "verifying"
	StateSuccess         RunState = "success"
	StateFailed          RunState = "failed"
)

// IsTerminal reports whether the state is terminal for a run.
func (s RunState) IsTerminal() bool {
	return s == StateSuccess || s == StateFailed
}

// CanTransitionTo reports whether the state machine permits moving from s
// to target. Failed is reachable from every non-terminal state.
func (s RunState) CanTransitionTo(target RunState) bool {
	if target == StateFailed {
		return !s.IsTerminal()
	}
	switch s {
	case StatePending:
		return target == StateResolvingConfig
	case StateResolvingConfig:
		return target == StateCreatingClient || target == StateProvisioning
	case StateCreatingClient:
		return target == StateProvisioning
	case StateProvisioning:
		return target == StateVerifying
	case StateVerifying:
		return target == StateSuccess
	default:
		return false
	}
}

// TransitionRecord captures one state transition for the audit trail.
type TransitionRecord struct {
	From   RunState  `json:"from"`
	To     RunState  `json:"to"`
	Event  string    `json:"event"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// ClientStatus is the lifecycle status of a tenant's ClientRecord.
type ClientStatus string

const (
	ClientPending      ClientStatus = "pending"
	ClientProvisioning ClientStatus = "provisioning"
	ClientActive       ClientStatus = "active"
	ClientFailed       ClientStatus = "failed"
)

// ClientStatusFor maps a run state onto the client lifecycle status the
// orchestrator persists alongside it. The two records never diverge by more
// than one orchestration step because both are written at each transition.
func ClientStatusFor(s RunState) ClientStatus {
	switch s {
	case StateSuccess:
		return ClientActive
	case StateFailed:
		return ClientFailed
	case StatePending, StateResolvingConfig, StateCreatingClient:
		return ClientPending
	default:
		return ClientProvisioning
	}
}
