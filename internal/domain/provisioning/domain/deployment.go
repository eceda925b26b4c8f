package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DeploymentRecord is the audit record for one provisioning run. Its Status
// mirrors the run state machine; the History slice records every transition
// in order.
type DeploymentRecord struct {
	ID          string   `json:"id"`
	ClientID    string   `json:"client_id"`
	RunID       string   `json:"run_id"`
	Status      RunState `json:"status"`
	Environment string   `json:"environment"`

	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Logs         []string           `json:"logs,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	History      []TransitionRecord `json:"history"`
}

// NewDeploymentRecord creates a pending deployment for a client.
func NewDeploymentRecord(clientID, environment string, now time.Time) *DeploymentRecord {
	return &DeploymentRecord{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		RunID:       uuid.NewString(),
		Status:      StatePending,
		Environment: environment,
		StartedAt:   now,
		UpdatedAt:   now,
		History:     []TransitionRecord{},
	}
}

// Transition moves the deployment to the target state, recording the step
// in the history. It fails if the state machine does not permit the move.
func (d *DeploymentRecord) Transition(target RunState, event, reason string, now time.Time) error {
	if !d.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, target)
	}
	d.History = append(d.History, TransitionRecord{
		From:   d.Status,
		To:     target,
		Event:  event,
		Reason: reason,
		At:     now,
	})
	d.Status = target
	d.UpdatedAt = now
	if target.IsTerminal() {
		d.close(now)
	}
	return nil
}

// AppendLog appends one provider log line, skipping consecutive duplicates.
func (d *DeploymentRecord) AppendLog(line string) {
	if line == "" {
		return
	}
	if n := len(d.Logs); n > 0 && d.Logs[n-1] == line {
		return
	}
	d.Logs = append(d.Logs, line)
}

// Fail records the failure message and transitions the run to failed.
func (d *DeploymentRecord) Fail(message string, now time.Time) error {
	d.ErrorMessage = message
	return d.Transition(StateFailed, string(EventFail), message, now)
}

// ForceFail drives the run to failed regardless of its current state. It
// exists for the recovery path where a run must end in exactly one terminal
// state even after an in-memory transition that was never persisted.
func (d *DeploymentRecord) ForceFail(message string, now time.Time) {
	if d.Status == StateFailed {
		return
	}
	d.History = append(d.History, TransitionRecord{
		From:   d.Status,
		To:     StateFailed,
		Event:  string(EventFail),
		Reason: message,
		At:     now,
	})
	d.Status = StateFailed
	d.ErrorMessage = message
	d.UpdatedAt = now
	if d.CompletedAt == nil {
		d.close(now)
	}
}

func (d *DeploymentRecord) close(now time.Time) {
	completed := now
	d.CompletedAt = &completed
	d.DurationSeconds = int64(math.Round(completed.Sub(d.StartedAt).Seconds()))
}
