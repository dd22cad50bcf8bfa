package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramHealth_RecordSuccess(t *testing.T) {
	h := NewProgramHealth("GG18", 0)
	assert.False(t, h.RecordSuccess(time.Second))

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusHealthy), snap.Status)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.NotNil(t, snap.LastSuccessAt)
}

func TestProgramHealth_RecordFailure_Threshold(t *testing.T) {
	h := NewProgramHealth("GG18", 3)
	assert.False(t, h.RecordFailure(errors.New("a")))
	assert.False(t, h.RecordFailure(errors.New("b")))
	assert.True(t, h.RecordFailure(errors.New("c")), "transition at threshold")
	assert.False(t, h.RecordFailure(errors.New("d")), "already unhealthy")

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusUnhealthy), snap.Status)
	assert.Equal(t, 4, snap.ConsecutiveFailures)
	assert.Equal(t, "d", snap.LastError)
}

func TestProgramHealth_Recovery(t *testing.T) {
	h := NewProgramHealth("GG18", 1)
	require.True(t, h.RecordFailure(errors.New("boom")))

	assert.True(t, h.RecordSuccess(time.Second))
	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusHealthy), snap.Status)
	assert.Empty(t, snap.LastError)
	assert.False(t, h.RecordSuccess(time.Second), "second success is not a recovery")
}

func TestProgramHealth_DegradedBySlowRuns(t *testing.T) {
	h := NewProgramHealth("GG18", 1)
	for i := 0; i < latencyWindowSize; i++ {
		h.RecordSuccess(10 * time.Minute)
	}
	assert.Equal(t, string(HealthStatusDegraded), h.Snapshot().Status)

	for i := 0; i < latencyWindowSize; i++ {
		h.RecordSuccess(time.Second)
	}
	assert.Equal(t, string(HealthStatusHealthy), h.Snapshot().Status)
}

func TestHealthRegistry_Snapshots(t *testing.T) {
	r := NewHealthRegistry(1)
	r.Get("GG19").RecordSuccess(time.Second)
	r.Get("GG18").RecordFailure(errors.New("x"))
	assert.Same(t, r.Get("GG18"), r.Get("GG18"))

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "GG18", snaps[0].Program)
	assert.Equal(t, string(HealthStatusUnhealthy), snaps[0].Status)
	assert.Equal(t, string(HealthStatusHealthy), snaps[1].Status)
}
