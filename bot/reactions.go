package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/callummance/rolebot/discord"
	"github.com/callummance/rolebot/guildmodels"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//HandleReactionAdd grants the mapped role when a member reacts to a role assignment message
func (b *RoleBot) HandleReactionAdd(r *discordgo.MessageReaction) {
	//Ignore reactions the bot attached itself
	if r.UserID == b.platform.SelfID() {
		return
	}
	b.applyReaction(r, "grant", b.platform.GrantRole)
}

//HandleReactionRemove revokes the mapped role when a member removes their reaction
func (b *RoleBot) HandleReactionRemove(r *discordgo.MessageReaction) {
	b.applyReaction(r, "revoke", b.platform.RevokeRole)
}

func (b *RoleBot) applyReaction(r *discordgo.MessageReaction, action string, apply func(guildID, userID, roleID string) error) {
	if r.GuildID == "" {
		return
	}
	roleID, tracked := b.lookupReactionRole(r)
	if !tracked {
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"guild":   r.GuildID,
		"message": r.MessageID,
		"user":    r.UserID,
		"emoji":   r.Emoji.MessageFormat(),
		"role":    roleID,
	})

	if _, err := b.platform.Guild(r.GuildID); err != nil {
		log.Warnf("Failed to resolve guild, abandoning role %v: %v", action, err)
		return
	}
	role, err := b.platform.Role(r.GuildID, roleID.String())
	if err != nil {
		log.Warnf("Mapped role could not be found, abandoning role %v: %v", action, err)
		return
	}
	member, err := b.platform.Member(r.GuildID, r.UserID)
	if err != nil {
		if errors.Is(err, discord.ErrNotFound) {
			log.Infof("Member is no longer in the guild, abandoning role %v", action)
		} else {
			log.Warnf("Failed to resolve member, abandoning role %v: %v", action, err)
		}
		return
	}

	if err := apply(r.GuildID, r.UserID, role.ID); err != nil {
		log.Errorf("Failed to %v role %v: %v", action, role.Name, err)
		return
	}
	name := r.UserID
	if member.User != nil {
		name = member.User.Username
	}
	log.Infof("Role %v: %v for %v", action, role.Name, name)
}

//lookupReactionRole finds the role mapped to the reaction's emoji on the reaction's message, if any
func (b *RoleBot) lookupReactionRole(r *discordgo.MessageReaction) (guildmodels.Snowflake, bool) {
	messageID, err := guildmodels.ParseSnowflake(r.MessageID)
	if err != nil {
		return 0, false
	}
	mapping, tracked := b.store.Get(messageID)
	if !tracked {
		return 0, false
	}
	for _, emoji := range discord.EmojiVariants(r.Emoji.Name, r.Emoji.ID, r.Emoji.Animated) {
		if roleID, ok := mapping[emoji]; ok {
			return roleID, true
		}
	}
	return 0, false
}
