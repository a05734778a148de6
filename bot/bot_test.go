package bot

import (
	"io/ioutil"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ready() *discordgo.Ready {
	return &discordgo.Ready{User: &discordgo.User{ID: testSelfID, Username: "rolebot"}}
}

func TestReadyLoadsMappings(t *testing.T) {
	b := newTestBot(t)
	require.NoError(t, ioutil.WriteFile(b.path, []byte(`{"9001": {"✅": 503}}`), 0644))

	b.HandleReady(ready())
	assert.True(t, b.status.Snapshot().Connected)
	mapping, ok := b.store.Get(9001)
	require.True(t, ok)
	assert.EqualValues(t, 503, mapping["✅"])
}

func TestReadyWithCorruptMappings(t *testing.T) {
	b := newTestBot(t)
	require.NoError(t, ioutil.WriteFile(b.path, []byte(`{"9001": ["oops"]`), 0644))

	assert.NotPanics(t, func() { b.HandleReady(ready()) })
	assert.Equal(t, 0, b.store.Len())
	assert.True(t, b.status.Snapshot().Connected)
}

func TestStatusTaskStartsOnce(t *testing.T) {
	b := newTestBot(t)
	b.opts.StatusInterval = time.Hour

	b.HandleReady(ready())
	b.HandleDisconnect()
	b.HandleReady(ready())
	b.HandleResumed(&discordgo.Resumed{})

	require.Eventually(t, func() bool { return len(b.platform.presenceUpdates()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(b.platform.presenceUpdates()) > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, []string{"1 servers"}, b.platform.presenceUpdates())
}

func TestStatusTaskRepeats(t *testing.T) {
	b := newTestBot(t)
	b.HandleReady(ready())

	require.Eventually(t, func() bool { return len(b.platform.presenceUpdates()) >= 3 }, 5*time.Second, 10*time.Millisecond)
	snap := b.status.Snapshot()
	assert.Equal(t, 1, snap.Guilds)
	assert.Equal(t, 3, snap.Members)
	assert.Equal(t, 10.0, snap.MemoryMB)
	assert.False(t, snap.LastHeartbeat.IsZero())

	b.Close()
	count := len(b.platform.presenceUpdates())
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, count, len(b.platform.presenceUpdates()))
}

func TestStatusUpdateRecoversFromPanic(t *testing.T) {
	b := newTestBot(t)
	b.memoryUsage = func() float64 { panic("no memory stats") }

	assert.NotPanics(t, b.updateStatus)
	assert.Equal(t, []string{"1 servers"}, b.platform.presenceUpdates())
}

func TestDisconnectMarksStatus(t *testing.T) {
	b := newTestBot(t)
	b.HandleReady(ready())
	b.HandleDisconnect()
	assert.False(t, b.status.Snapshot().Connected)
	b.HandleResumed(&discordgo.Resumed{})
	assert.True(t, b.status.Snapshot().Connected)
}

func TestHandleErrorDoesNotPanic(t *testing.T) {
	b := newTestBot(t)
	assert.NotPanics(t, func() { b.HandleError("MESSAGE_REACTION_ADD", errors.New("boom")) })
}

func TestCloseFlushesMappings(t *testing.T) {
	b := newTestBot(t)
	b.HandleReady(ready())
	b.HandleMessage(command(testOwnerID, "!setup_roles GoodRole:✅"))
	b.Close()
	b.Close()

	content, err := ioutil.ReadFile(b.path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"9001"`)
	assert.False(t, b.status.Snapshot().Connected)
}
