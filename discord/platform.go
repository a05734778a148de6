package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//callContext bounds a single discord API call by the configured timeout
func (d *EventSource) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.callTimeout)
}

//SelfID returns the user id of the bot, or an empty string if the gateway has not become ready yet
func (d *EventSource) SelfID() string {
	state := d.discordClient.State
	if state == nil || state.User == nil {
		return ""
	}
	return state.User.ID
}

//Guilds returns every guild currently held in the state cache
func (d *EventSource) Guilds() []*discordgo.Guild {
	state := d.discordClient.State
	state.RLock()
	defer state.RUnlock()
	res := make([]*discordgo.Guild, len(state.Guilds))
	copy(res, state.Guilds)
	return res
}

//Guild looks up a guild in the state cache, falling back to the API
func (d *EventSource) Guild(guildID string) (*discordgo.Guild, error) {
	if guild, err := d.discordClient.State.Guild(guildID); err == nil {
		return guild, nil
	}
	ctx, cancel := d.callContext()
	defer cancel()
	guild, err := d.discordClient.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("fetch guild", err)
	}
	return guild, nil
}

//GuildRoles fetches the full list of roles for a guild
func (d *EventSource) GuildRoles(guildID string) ([]*discordgo.Role, error) {
	ctx, cancel := d.callContext()
	defer cancel()
	roles, err := d.discordClient.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("fetch guild roles", err)
	}
	return roles, nil
}

//Role finds a single role within a guild
func (d *EventSource) Role(guildID, roleID string) (*discordgo.Role, error) {
	if role, err := d.discordClient.State.Role(guildID, roleID); err == nil {
		return role, nil
	}
	roles, err := d.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role, nil
		}
	}
	return nil, &APIError{
		Op:   "fetch role",
		Kind: ErrNotFound,
		Err:  fmt.Errorf("role %v does not exist in guild %v", roleID, guildID),
	}
}

func memberCacheKey(guildID, userID string) string {
	return guildID + "/" + userID
}

//Member looks up a guild member, first in the state cache, then in the local member cache and finally from the API
func (d *EventSource) Member(guildID, userID string) (*discordgo.Member, error) {
	if member, err := d.discordClient.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	key := memberCacheKey(guildID, userID)
	if d.memberCache != nil {
		if cached, ok := d.memberCache.Get(key); ok {
			return cached.(*discordgo.Member), nil
		}
	}

	ctx, cancel := d.callContext()
	defer cancel()
	member, err := d.discordClient.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("fetch member", err)
	}
	if d.memberCache != nil {
		d.memberCache.Add(key, member)
	}
	return member, nil
}

//SendEmbed posts an embed to a channel, optionally as a reply to another message
func (d *EventSource) SendEmbed(channelID string, embed *discordgo.MessageEmbed, reference *discordgo.MessageReference) (*discordgo.Message, error) {
	ctx, cancel := d.callContext()
	defer cancel()
	msg := discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: reference,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
	sent, err := d.discordClient.ChannelMessageSendComplex(channelID, &msg, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("send message", err)
	}
	return sent, nil
}

//DeleteMessage removes a message from a channel
func (d *EventSource) DeleteMessage(channelID, messageID string) error {
	ctx, cancel := d.callContext()
	defer cancel()
	err := d.discordClient.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	return classify("delete message", err)
}

//AddReaction reacts to a message with an emoji given in the same form a user would type it
func (d *EventSource) AddReaction(channelID, messageID, emoji string) error {
	ctx, cancel := d.callContext()
	defer cancel()
	err := d.discordClient.MessageReactionAdd(channelID, messageID, EmojiAPIName(emoji), discordgo.WithContext(ctx))
	return classify("add reaction", err)
}

//GrantRole adds a role to a guild member
func (d *EventSource) GrantRole(guildID, userID, roleID string) error {
	ctx, cancel := d.callContext()
	defer cancel()
	err := classify("grant role", d.discordClient.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
	d.forgetMissingMember(guildID, userID, err)
	return err
}

//RevokeRole removes a role from a guild member
func (d *EventSource) RevokeRole(guildID, userID, roleID string) error {
	ctx, cancel := d.callContext()
	defer cancel()
	err := classify("revoke role", d.discordClient.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
	d.forgetMissingMember(guildID, userID, err)
	return err
}

func (d *EventSource) forgetMissingMember(guildID, userID string, err error) {
	if d.memberCache != nil && errors.Is(err, ErrNotFound) {
		d.memberCache.Remove(memberCacheKey(guildID, userID))
	}
}

//UpdatePresence sets the "Watching ..." status text of the bot
func (d *EventSource) UpdatePresence(text string) error {
	err := d.discordClient.UpdateWatchStatus(0, text)
	if err != nil {
		logrus.Debugf("Failed to update presence to %q: %v", text, err)
		return errors.Wrap(err, "failed to update presence")
	}
	return nil
}
