package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeploymentRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dep := NewDeploymentRecord("client-1", "production", now)

	assert.NotEmpty(t, dep.ID)
	assert.NotEmpty(t, dep.RunID)
	assert.NotEqual(t, dep.ID, dep.RunID)
	assert.Equal(t, "client-1", dep.ClientID)
	assert.Equal(t, StatePending, dep.Status)
	assert.Equal(t, "production", dep.Environment)
	assert.Empty(t, dep.History)
	assert.Nil(t, dep.CompletedAt)
}

func TestDeploymentRecord_Transition(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dep := NewDeploymentRecord("client-1", "production", now)

	require.NoError(t, dep.Transition(StateResolvingConfig, string(EventResolveConfig), "", now.Add(time.Second)))
	assert.Equal(t, StateResolvingConfig, dep.Status)
	require.Len(t, dep.History, 1)
	assert.Equal(t, StatePending, dep.History[0].From)
	assert.Equal(t, StateResolvingConfig, dep.History[0].To)

	err := dep.Transition(StateVerifying, string(EventVerify), "", now.Add(2*time.Second))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateResolvingConfig, dep.Status, "failed transition must not mutate state")
	assert.Len(t, dep.History, 1)
}

func TestDeploymentRecord_TerminalClosesRecord(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dep := NewDeploymentRecord("client-1", "production", start)

	steps := []struct {
		target RunState
		event  string
	}{
		{StateResolvingConfig, string(EventResolveConfig)},
		{StateCreatingClient, string(EventCreateClient)},
		{StateProvisioning, string(EventStartDeploy)},
		{StateVerifying, string(EventVerify)},
	}
	at := start
	for _, s := range steps {
		at = at.Add(10 * time.Second)
		require.NoError(t, dep.Transition(s.target, s.event, "", at))
	}

	// 90.4s after start rounds to 90 whole seconds.
	end := start.Add(90*time.Second + 400*time.Millisecond)
	require.NoError(t, dep.Transition(StateSuccess, string(EventComplete), "", end))

	require.NotNil(t, dep.CompletedAt)
	assert.Equal(t, end, *dep.CompletedAt)
	assert.Equal(t, int64(90), dep.DurationSeconds)
	assert.Len(t, dep.History, 5)
}

func TestDeploymentRecord_Fail(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dep := NewDeploymentRecord("client-1", "production", now)
	require.NoError(t, dep.Transition(StateResolvingConfig, string(EventResolveConfig), "", now))

	require.NoError(t, dep.Fail("provider rejected credentials", now.Add(time.Second)))
	assert.Equal(t, StateFailed, dep.Status)
	assert.Equal(t, "provider rejected credentials", dep.ErrorMessage)
	assert.NotNil(t, dep.CompletedAt)

	// A second failure on a closed record is rejected.
	err := dep.Fail("again", now.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeploymentRecord_ForceFail(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dep := NewDeploymentRecord("client-1", "production", now)
	require.NoError(t, dep.Transition(StateResolvingConfig, string(EventResolveConfig), "", now))
	require.NoError(t, dep.Transition(StateCreatingClient, string(EventCreateClient), "", now))
	require.NoError(t, dep.Transition(StateProvisioning, string(EventStartDeploy), "", now))
	require.NoError(t, dep.Transition(StateVerifying, string(EventVerify), "", now))

	// A success the machine already accepted in memory.
	end := now.Add(time.Minute)
	require.NoError(t, dep.Transition(StateSuccess, string(EventComplete), "", end))
	require.Error(t, dep.Fail("store write rejected", end))

	dep.ForceFail("store write rejected", end.Add(time.Second))
	assert.Equal(t, StateFailed, dep.Status)
	assert.Equal(t, "store write rejected", dep.ErrorMessage)
	require.NotNil(t, dep.CompletedAt)
	assert.Equal(t, end, *dep.CompletedAt, "original completion time is kept")

	last := dep.History[len(dep.History)-1]
	assert.Equal(t, StateSuccess, last.From)
	assert.Equal(t, StateFailed, last.To)

	// Forcing an already-failed record is a no-op.
	before := len(dep.History)
	dep.ForceFail("again", end.Add(2*time.Second))
	assert.Len(t, dep.History, before)
	assert.Equal(t, "store write rejected", dep.ErrorMessage)
}

func TestDeploymentRecord_AppendLog(t *testing.T) {
	dep := NewDeploymentRecord("client-1", "production", time.Now())

	dep.AppendLog("fetching template")
	dep.AppendLog("fetching template")
	dep.AppendLog("")
	dep.AppendLog("building site")
	dep.AppendLog("fetching template")

	assert.Equal(t, []string{"fetching template", "building site", "fetching template"}, dep.Logs)
}
