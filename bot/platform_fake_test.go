package bot

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/rolebot/db"
	"github.com/callummance/rolebot/discord"
	"github.com/callummance/rolebot/health"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testSelfID    = "100"
	testGuildID   = "200"
	testChannelID = "300"
	testOwnerID   = "400"
	testAdminID   = "401"
	testUserID    = "402"
	adminRoleID   = "500"
)

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
	reference *discordgo.MessageReference
}

//fakePlatform records every call the bot makes
type fakePlatform struct {
	mu sync.Mutex

	guilds  map[string]*discordgo.Guild
	roles   map[string][]*discordgo.Role
	members map[string]*discordgo.Member

	sendErr   error
	reactErrs map[string]error
	grantErr  error
	rolesErr  error

	nextMessageID int
	sent          []sentEmbed
	deleted       []string
	reactions     []string
	calls         []string
	presence      []string
}

func newFakePlatform() *fakePlatform {
	f := &fakePlatform{
		guilds: map[string]*discordgo.Guild{
			testGuildID: {ID: testGuildID, OwnerID: testOwnerID, MemberCount: 3},
		},
		roles: map[string][]*discordgo.Role{
			testGuildID: {
				{ID: adminRoleID, Name: "Admin", Permissions: discordgo.PermissionAdministrator},
				{ID: "501", Name: "Member"},
				{ID: "502", Name: "Gamer"},
				{ID: "503", Name: "GoodRole"},
				{ID: "504", Name: "A"},
				{ID: "505", Name: "B"},
			},
		},
		members:       map[string]*discordgo.Member{},
		reactErrs:     map[string]error{},
		nextMessageID: 9000,
	}
	f.addMember(testAdminID, adminRoleID)
	f.addMember(testUserID)
	return f
}

func (f *fakePlatform) addMember(userID string, roles ...string) {
	f.members[testGuildID+"/"+userID] = &discordgo.Member{
		GuildID: testGuildID,
		User:    &discordgo.User{ID: userID, Username: "user" + userID},
		Roles:   roles,
	}
}

func notFound(op string) error {
	return &discord.APIError{Op: op, Kind: discord.ErrNotFound, Err: errors.New("unknown")}
}

func (f *fakePlatform) SelfID() string { return testSelfID }

func (f *fakePlatform) Guilds() []*discordgo.Guild {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*discordgo.Guild
	for _, guild := range f.guilds {
		res = append(res, guild)
	}
	return res
}

func (f *fakePlatform) Guild(guildID string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	guild, ok := f.guilds[guildID]
	if !ok {
		return nil, notFound("fetch guild")
	}
	return guild, nil
}

func (f *fakePlatform) GuildRoles(guildID string) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return f.roles[guildID], nil
}

func (f *fakePlatform) Role(guildID, roleID string) (*discordgo.Role, error) {
	roles, err := f.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role, nil
		}
	}
	return nil, notFound("fetch role")
}

func (f *fakePlatform) Member(guildID, userID string) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[guildID+"/"+userID]
	if !ok {
		return nil, notFound("fetch member")
	}
	return member, nil
}

func (f *fakePlatform) SendEmbed(channelID string, embed *discordgo.MessageEmbed, reference *discordgo.MessageReference) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil && reference == nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentEmbed{channelID: channelID, embed: embed, reference: reference})
	f.nextMessageID++
	return &discordgo.Message{ID: fmt.Sprint(f.nextMessageID), ChannelID: channelID}, nil
}

func (f *fakePlatform) DeleteMessage(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePlatform) AddReaction(channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reactErrs[emoji]; err != nil {
		return err
	}
	f.reactions = append(f.reactions, emoji)
	return nil
}

func (f *fakePlatform) GrantRole(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("grant %v %v", userID, roleID))
	return f.grantErr
}

func (f *fakePlatform) RevokeRole(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("revoke %v %v", userID, roleID))
	return nil
}

func (f *fakePlatform) UpdatePresence(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence = append(f.presence, text)
	return nil
}

//sentMessages returns a copy of every embed sent so far
func (f *fakePlatform) sentMessages() []sentEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmbed(nil), f.sent...)
}

func (f *fakePlatform) roleCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlatform) presenceUpdates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.presence...)
}

type testBot struct {
	*RoleBot
	platform *fakePlatform
	path     string
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	path := filepath.Join(t.TempDir(), "role_mappings.json")
	backend, err := db.NewFileBackend(path)
	require.NoError(t, err)
	platform := newFakePlatform()
	b := New(platform, db.NewMappingStore(backend), health.NewStatus(), Options{StatusInterval: 50 * time.Millisecond})
	b.memoryUsage = func() float64 { return 10 }
	t.Cleanup(b.Close)
	return &testBot{RoleBot: b, platform: platform, path: path}
}

func command(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "8000",
		ChannelID: testChannelID,
		GuildID:   testGuildID,
		Content:   content,
		Author:    &discordgo.User{ID: userID},
	}}
}

func reaction(messageID, userID, emoji string) *discordgo.MessageReaction {
	return &discordgo.MessageReaction{
		UserID:    userID,
		MessageID: messageID,
		ChannelID: testChannelID,
		GuildID:   testGuildID,
		Emoji:     discordgo.Emoji{Name: emoji},
	}
}
