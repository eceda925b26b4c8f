package domain

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// MachineContext is the context passed to the state machine.
type MachineContext struct {
	Deployment *DeploymentRecord
}

// Event names for the state machine.
const (
	EventResolveConfig statekit.EventType = "RESOLVE_CONFIG"
	EventCreateClient  statekit.EventType = "CREATE_CLIENT"
	EventStartDeploy   statekit.EventType = "START_DEPLOY"
	EventVerify        statekit.EventType = "VERIFY"
	EventComplete      statekit.EventType = "COMPLETE"
	EventFail          statekit.EventType = "FAIL"
)

// Guard names for the state machine.
const (
	GuardNotTerminal statekit.GuardType = "notTerminal"
)

// State IDs for the state machine.
var (
	StateIDPending         statekit.StateID = statekit.StateID(StatePending)
	StateIDResolvingConfig statekit.StateID = statekit.StateID(StateResolvingConfig)
	StateIDCreatingClient  statekit.StateID = statekit.StateID(StateCreatingClient)
	StateIDProvisioning    statekit.StateID = statekit.StateID(StateProvisioning)
	StateIDVerifying       statekit.StateID = statekit.StateID(StateVerifying)
	StateIDSuccess         statekit.StateID = statekit.StateID(StateSuccess)
	StateIDFailed          statekit.StateID = statekit.StateID(StateFailed)
)

// RunMachine wraps the Statekit state machine for provisioning runs.
type RunMachine struct {
	interpreter *statekit.Interpreter[MachineContext]
}

// NewRunMachine creates a new state machine for provisioning runs.
func NewRunMachine() (*RunMachine, error) {
	machine, err := statekit.NewMachine[MachineContext]("provisioning-run").
		WithInitial(StateIDPending).
		WithGuard(GuardNotTerminal, guardNotTerminal).
		// Pending state
		State(StateIDPending).
		On(EventResolveConfig).Target(StateIDResolvingConfig).
		On(EventFail).Target(StateIDFailed).Guard(GuardNotTerminal).
		Done().
		// Resolving config; client creation is skipped for existing clients
		State(StateIDResolvingConfig).
		On(EventCreateClient).Target(StateIDCreatingClient).
		On(EventStartDeploy).Target(StateIDProvisioning).
		On(EventFail).Target(StateIDFailed).Guard(GuardNotTerminal).
		Done().
		// Creating client record
		State(StateIDCreatingClient).
		On(EventStartDeploy).Target(StateIDProvisioning).
		On(EventFail).Target(StateIDFailed).Guard(GuardNotTerminal).
		Done().
		// Provisioning (deploy in flight, polled until terminal)
		State(StateIDProvisioning).
		On(EventVerify).Target(StateIDVerifying).
		On(EventFail).Target(StateIDFailed).Guard(GuardNotTerminal).
		Done().
		// Verifying deploy outcome and binding URLs
		State(StateIDVerifying).
		On(EventComplete).Target(StateIDSuccess).
		On(EventFail).Target(StateIDFailed).Guard(GuardNotTerminal).
		Done().
		// Terminal states
		State(StateIDSuccess).
		Final().
		Done().
		State(StateIDFailed).
		Final().
		Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}

	return &RunMachine{interpreter: statekit.NewInterpreter(machine)}, nil
}

func guardNotTerminal(ctx MachineContext, _ statekit.Event) bool {
	if ctx.Deployment == nil {
		return true
	}
	return !ctx.Deployment.Status.IsTerminal()
}

// Start starts the state machine interpreter.
func (m *RunMachine) Start() {
	m.interpreter.Start()
}

// Send sends an event to the interpreter.
func (m *RunMachine) Send(event statekit.EventType) error {
	if m.interpreter == nil {
		return fmt.Errorf("interpreter not started")
	}
	m.interpreter.Send(statekit.Event{Type: event})
	return nil
}

// CurrentState returns the current state.
func (m *RunMachine) CurrentState() statekit.StateID {
	if m.interpreter == nil {
		return ""
	}
	return m.interpreter.State().Value
}

// IsDone returns true if the machine is in a final state.
func (m *RunMachine) IsDone() bool {
	if m.interpreter == nil {
		return false
	}
	return m.interpreter.Done()
}

// targetStateFor maps an event to the state it transitions into.
func targetStateFor(event statekit.EventType) (RunState, error) {
	switch event {
	case EventResolveConfig:
		return StateResolvingConfig, nil
	case EventCreateClient:
		return StateCreatingClient, nil
	case EventStartDeploy:
		return StateProvisioning, nil
	case EventVerify:
		return StateVerifying, nil
	case EventComplete:
		return StateSuccess, nil
	case EventFail:
		return StateFailed, nil
	default:
		return "", fmt.Errorf("unknown event: %s", event)
	}
}

// ValidateTransition checks if a transition is valid without executing it.
func ValidateTransition(current RunState, event statekit.EventType) error {
	target, err := targetStateFor(event)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s via %s",
			ErrInvalidTransition, current, target, event)
	}
	return nil
}

// XStateJSON represents the XState JSON format for visualization.
type XStateJSON struct {
	ID      string                     `json:"id"`
	Initial string                     `json:"initial"`
	States  map[string]XStateStateJSON `json:"states"`
}

// XStateStateJSON represents a state in XState JSON format.
type XStateStateJSON struct {
	Type string                      `json:"type,omitempty"`
	On   map[string]XStateTransition `json:"on,omitempty"`
}

// XStateTransition represents a transition in XState JSON format.
type XStateTransition struct {
	Target string `json:"target"`
	Guard  string `json:"cond,omitempty"`
}

// ExportXStateJSON exports the state machine definition as XState-compatible JSON.
func (m *RunMachine) ExportXStateJSON() ([]byte, error) {
	failTransition := XStateTransition{Target: string(StateFailed), Guard: string(GuardNotTerminal)}

	xstate := XStateJSON{
		ID:      "provisioning-run",
		Initial: string(StatePending),
		States: map[string]XStateStateJSON{
			string(StatePending): {
				On: map[string]XStateTransition{
					string(EventResolveConfig): {Target: string(StateResolvingConfig)},
					string(EventFail):          failTransition,
				},
			},
			string(StateResolvingConfig): {
				On: map[string]XStateTransition{
					string(EventCreateClient): {Target: string(StateCreatingClient)},
					string(EventStartDeploy):  {Target: string(StateProvisioning)},
					string(EventFail):         failTransition,
				},
			},
			string(StateCreatingClient): {
				On: map[string]XStateTransition{
					string(EventStartDeploy): {Target: string(StateProvisioning)},
					string(EventFail):        failTransition,
				},
			},
			string(StateProvisioning): {
				On: map[string]XStateTransition{
					string(EventVerify): {Target: string(StateVerifying)},
					string(EventFail):   failTransition,
				},
			},
			string(StateVerifying): {
				On: map[string]XStateTransition{
					string(EventComplete): {Target: string(StateSuccess)},
					string(EventFail):     failTransition,
				},
			},
			string(StateSuccess): {Type: "final"},
			string(StateFailed):  {Type: "final"},
		},
	}

	return json.MarshalIndent(xstate, "", "  ")
}

// ExportStateSnapshot exports the current state of a deployment as JSON.
func ExportStateSnapshot(dep *DeploymentRecord) ([]byte, error) {
	snapshot := struct {
		RunID       string             `json:"run_id"`
		ClientID    string             `json:"client_id"`
		State       string             `json:"state"`
		Environment string             `json:"environment"`
		History     []TransitionRecord `json:"history"`
		UpdatedAt   string             `json:"updated_at"`
	}{
		RunID:       dep.RunID,
		ClientID:    dep.ClientID,
		State:       string(dep.Status),
		Environment: dep.Environment,
		History:     dep.History,
		UpdatedAt:   dep.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	return json.MarshalIndent(snapshot, "", "  ")
}
