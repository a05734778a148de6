package bot

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

//startStatusTask refreshes presence and health status immediately and then once every status interval
func (b *RoleBot) startStatusTask() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.opts.StatusInterval)
		defer ticker.Stop()
		for {
			b.updateStatus()
			select {
			case <-ticker.C:
			case <-b.done:
				return
			}
		}
	}()
}

//updateStatus runs a single status refresh. A failing run never stops the task.
func (b *RoleBot) updateStatus() {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Status update panicked: %v", r)
		}
	}()

	guilds := b.platform.Guilds()
	members := 0
	for _, guild := range guilds {
		members += guild.MemberCount
	}
	presence := fmt.Sprintf("%d servers", len(guilds))
	if err := b.platform.UpdatePresence(presence); err != nil {
		logrus.Warnf("Failed to update presence: %v", err)
	}

	memoryMB := b.memoryUsage()
	b.status.Heartbeat(len(guilds), members, memoryMB)
	logrus.Debugf("Status: %d servers, %d members, %.1f MB memory", len(guilds), members, memoryMB)
	if memoryMB > b.opts.MemoryWarnMB {
		logrus.Warnf("Memory usage is high: %.1f MB (warning threshold %.0f MB)", memoryMB, b.opts.MemoryWarnMB)
	}
}
