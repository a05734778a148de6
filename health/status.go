package health

import (
	"runtime"
	"sync"
	"time"
)

const bytesPerMB = 1024 * 1024

//Status is the health read model published by the bot and read by the health server.
//It is safe for concurrent use.
type Status struct {
	mu            sync.RWMutex
	startedAt     time.Time
	connected     bool
	guilds        int
	members       int
	lastHeartbeat time.Time
	memoryMB      float64
}

//Snapshot is a consistent copy of a Status at one point in time
type Snapshot struct {
	StartedAt     time.Time
	Connected     bool
	Guilds        int
	Members       int
	LastHeartbeat time.Time
	MemoryMB      float64
}

//NewStatus creates a Status for a process started now
func NewStatus() *Status {
	return &Status{startedAt: time.Now()}
}

//SetConnected records whether the discord gateway connection is currently up
func (s *Status) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

//Heartbeat refreshes the counters and stamps the heartbeat time
func (s *Status) Heartbeat(guilds, members int, memoryMB float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guilds = guilds
	s.members = members
	s.memoryMB = memoryMB
	now := time.Now()
	//Keep the heartbeat monotonic even if the wall clock steps backwards
	if now.After(s.lastHeartbeat) {
		s.lastHeartbeat = now
	}
}

//Snapshot returns a copy of the current status
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		StartedAt:     s.startedAt,
		Connected:     s.connected,
		Guilds:        s.guilds,
		Members:       s.members,
		LastHeartbeat: s.lastHeartbeat,
		MemoryMB:      s.memoryMB,
	}
}

//Uptime is the time elapsed between process start and now
func (s Snapshot) Uptime(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

//MemoryUsageMB samples the memory the go runtime has obtained from the OS
func MemoryUsageMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Sys) / bytesPerMB
}
