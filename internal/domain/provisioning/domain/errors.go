package domain

import "errors"

var (
	// ErrInvalidTransition is returned when a state change violates the run
	// state machine.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrClientNotFound is returned when a client record does not exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrDeploymentNotFound is returned when a deployment record does not exist.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrRunInProgress is returned when a provisioning run is already active
	// for the client.
	ErrRunInProgress = errors.New("provisioning run already in progress")
)
