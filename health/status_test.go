package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusIsDisconnected(t *testing.T) {
	status := NewStatus()
	snap := status.Snapshot()
	assert.False(t, snap.Connected)
	assert.True(t, snap.LastHeartbeat.IsZero())
	assert.WithinDuration(t, time.Now(), snap.StartedAt, time.Second)
}

func TestHeartbeat(t *testing.T) {
	status := NewStatus()
	status.SetConnected(true)
	status.Heartbeat(3, 120, 42.5)

	snap := status.Snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, 3, snap.Guilds)
	assert.Equal(t, 120, snap.Members)
	assert.Equal(t, 42.5, snap.MemoryMB)
	first := snap.LastHeartbeat
	assert.False(t, first.IsZero())

	status.Heartbeat(4, 121, 40)
	assert.False(t, status.Snapshot().LastHeartbeat.Before(first))
}

func TestSnapshotIsACopy(t *testing.T) {
	status := NewStatus()
	snap := status.Snapshot()
	status.SetConnected(true)
	assert.False(t, snap.Connected)
}

func TestMemoryUsageMB(t *testing.T) {
	assert.Greater(t, MemoryUsageMB(), 0.0)
}
