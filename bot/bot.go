package bot

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/rolebot/db"
	"github.com/callummance/rolebot/health"
	"github.com/sirupsen/logrus"
)

const (
	defaultCommandPrefix  = "!"
	defaultStatusInterval = 10 * time.Minute
	defaultMemoryWarnMB   = 450
)

//Options configures a RoleBot
type Options struct {
	//Prefix marking a message as a command
	CommandPrefix string
	//User id which is always treated as an administrator
	DevUserID string
	//Period of the presence and health status task
	StatusInterval time.Duration
	//Memory usage above which the status task logs a warning
	MemoryWarnMB float64
}

//RoleBot hands out roles to members who react to role assignment messages
type RoleBot struct {
	platform Platform
	store    *db.MappingStore
	status   *health.Status
	opts     Options

	memoryUsage func() float64

	readyOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

//New creates a RoleBot. Nothing happens until the platform starts delivering events.
func New(platform Platform, store *db.MappingStore, status *health.Status, opts Options) *RoleBot {
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = defaultCommandPrefix
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = defaultStatusInterval
	}
	if opts.MemoryWarnMB <= 0 {
		opts.MemoryWarnMB = defaultMemoryWarnMB
	}
	return &RoleBot{
		platform:    platform,
		store:       store,
		status:      status,
		opts:        opts,
		memoryUsage: health.MemoryUsageMB,
		done:        make(chan struct{}),
	}
}

//HandleReady is called whenever the gateway connection becomes ready. The mappings are only loaded and the
//status task only started the first time.
func (b *RoleBot) HandleReady(r *discordgo.Ready) {
	b.status.SetConnected(true)
	if r != nil && r.User != nil {
		logrus.Infof("%v has connected to Discord!", r.User.Username)
		logrus.Infof("Bot is in %d guilds", len(r.Guilds))
	}
	b.readyOnce.Do(func() {
		if err := b.store.Load(); err != nil {
			logrus.Errorf("Failed to load role mappings, continuing with none: %v", err)
		}
		b.startStatusTask()
	})
}

//HandleResumed is called when a dropped gateway connection has been resumed
func (b *RoleBot) HandleResumed(r *discordgo.Resumed) {
	logrus.Info("Discord connection resumed")
	b.status.SetConnected(true)
}

//HandleDisconnect is called when the gateway connection drops
func (b *RoleBot) HandleDisconnect() {
	logrus.Warn("Disconnected from Discord")
	b.status.SetConnected(false)
}

//HandleError logs errors raised whilst dispatching a gateway event
func (b *RoleBot) HandleError(event string, err error) {
	logrus.WithField("event", event).Errorf("Error whilst handling discord event: %v", err)
}

//Close stops the status task and flushes the mapping store
func (b *RoleBot) Close() {
	b.closeOnce.Do(func() {
		logrus.Info("Terminating bot...")
		close(b.done)
		b.wg.Wait()
		b.status.SetConnected(false)
		if err := b.store.Close(); err != nil {
			logrus.Errorf("Failed to save role mappings on shutdown: %v", err)
		}
	})
}
