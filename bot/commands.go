package bot

import (
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	setupRolesCommand   = "setup_roles"
	showMappingsCommand = "show_mappings"
)

//HandleMessage is called upon every recieved message. It checks if the message is a command, and executes it.
func (b *RoleBot) HandleMessage(msg *discordgo.MessageCreate) {
	if msg == nil || msg.Message == nil || msg.Author == nil {
		return
	}
	//Ignore the bot itself, other bots and direct messages
	if msg.Author.Bot || msg.Author.ID == b.platform.SelfID() || msg.GuildID == "" {
		return
	}
	command, args, ok := splitCommand(msg.Content, b.opts.CommandPrefix)
	if !ok {
		return
	}
	switch command {
	case setupRolesCommand:
		b.runAdminCommand(msg, command, func() { b.handleSetupRoles(msg, args) })
	case showMappingsCommand:
		b.runAdminCommand(msg, command, func() { b.handleShowMappings(msg) })
	}
}

//splitCommand separates a prefixed message into the command name and everything after it
func splitCommand(content, prefix string) (string, string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, prefix)
	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		return rest, "", rest != ""
	}
	return rest[:end], strings.TrimSpace(rest[end:]), end > 0
}

func (b *RoleBot) runAdminCommand(msg *discordgo.MessageCreate, command string, run func()) {
	isAdmin, err := b.isFromAdmin(msg.Member, msg.Author, msg.GuildID)
	if err != nil {
		logrus.Warnf("Failed to check if message came from admin due to error %v", err)
		b.respond(msg, ResponseInternalError{
			command:     command,
			commandMsg:  msg.Content,
			description: "Could not check your permissions on this server.",
			err:         err,
			timestamp:   time.Now(),
		})
		return
	}
	if !isAdmin {
		b.respond(msg, ResponseNotAllowed{
			command:    command,
			commandMsg: msg.Content,
			timestamp:  time.Now(),
		})
		return
	}
	run()
}

//respond logs a command result and replies to the command message with it
func (b *RoleBot) respond(msg *discordgo.MessageCreate, result BotResponse) {
	result.WriteToLog()
	msgRef := discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}
	_, err := b.platform.SendEmbed(msg.ChannelID, result.DiscordResponse(), &msgRef)
	if err != nil {
		logrus.Errorf("Failed to send response to command due to error %v", err)
	}
}

//isFromAdmin checks whether a user is the developer, the owner of the guild or holds a role with the
//administrator permission
func (b *RoleBot) isFromAdmin(member *discordgo.Member, user *discordgo.User, guildID string) (bool, error) {
	//Works if from dev
	if b.opts.DevUserID != "" && user.ID == b.opts.DevUserID {
		return true, nil
	}
	//Works if from server owner
	guild, err := b.platform.Guild(guildID)
	if err != nil {
		logrus.Warnf("Failed to fetch guild object from Discord API when checking if user %v is admin for server %v", user.ID, guildID)
		return false, err
	} else if guild.OwnerID == user.ID {
		return true, nil
	}
	//Works if user has a role with the administrator permission
	if member == nil {
		member, err = b.platform.Member(guildID, user.ID)
		if err != nil {
			return false, err
		}
	}
	if len(member.Roles) == 0 {
		return false, nil
	}
	roles, err := b.platform.GuildRoles(guildID)
	if err != nil {
		logrus.Warnf("Failed to fetch roles from Discord API when checking if user %v is admin for server %v", user.ID, guildID)
		return false, err
	}
	adminRoles := make(map[string]bool)
	for _, role := range roles {
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			adminRoles[role.ID] = true
		}
	}
	for _, senderRole := range member.Roles {
		if adminRoles[senderRole] {
			return true, nil
		}
	}
	return false, nil
}
