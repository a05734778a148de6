package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/rolebot/guildmodels"
	"github.com/sirupsen/logrus"
)

const roleAssignmentColour int = 0x3498db

//Discord only allows 25 fields per embed
const maxMappingFields = 25

func (b *RoleBot) setupRolesSyntax() string {
	return fmt.Sprintf("`%[1]v%[2]v Role1:emoji1 Role2:emoji2 ...`\nExample: `%[1]v%[2]v Admin:👑 Member:👋 Gamer:🎮`",
		b.opts.CommandPrefix, setupRolesCommand)
}

//handleSetupRoles posts a role assignment message for the Role:emoji pairs in args, registers it and reacts to
//it with every emoji. Pairs which cannot be used are skipped and reported back.
//command format: !setup_roles Role1:emoji1 Role2:emoji2 ...
func (b *RoleBot) handleSetupRoles(msg *discordgo.MessageCreate, args string) {
	if strings.TrimSpace(args) == "" {
		b.respond(msg, ResponseSyntaxError{
			command:     setupRolesCommand,
			commandMsg:  msg.Content,
			description: "Please provide role-emoji pairs.",
			syntax:      b.setupRolesSyntax(),
			timestamp:   time.Now(),
		})
		return
	}

	pairs, problems := splitRolePairs(args)
	guildRoles, err := b.platform.GuildRoles(msg.GuildID)
	if err != nil {
		b.respond(msg, ResponseInternalError{
			command:     setupRolesCommand,
			commandMsg:  msg.Content,
			description: "Could not fetch the roles of this server.",
			err:         err,
			timestamp:   time.Now(),
		})
		return
	}
	byName := rolesByName(guildRoles)

	assignment := newRoleAssignment()
	for _, pair := range pairs {
		role, exists := byName[pair.roleName]
		if !exists {
			logrus.Debugf("Role %q not found in guild %v", pair.roleName, msg.GuildID)
			problems = append(problems, problem{input: pair.raw, reason: fmt.Sprintf("Role '%v' not found.", pair.roleName)})
			continue
		}
		assignment.set(pair.emoji, role)
		logrus.Debugf("Added mapping: %v -> %v (ID: %v)", pair.emoji, role.Name, role.ID)
	}

	mapping := make(guildmodels.RoleMapping, assignment.len())
	for _, emoji := range assignment.order {
		roleID, err := guildmodels.ParseSnowflake(assignment.roles[emoji].ID)
		if err != nil {
			logrus.Warnf("Guild %v has a role with unexpected id %q", msg.GuildID, assignment.roles[emoji].ID)
			problems = append(problems, problem{input: emoji, reason: "The role has an invalid id."})
			continue
		}
		mapping[emoji] = roleID
	}

	if len(mapping) == 0 {
		b.respond(msg, ResponseFailure{
			command:     setupRolesCommand,
			commandMsg:  msg.Content,
			description: "No valid role-emoji pairs provided.",
			problems:    problems,
			timestamp:   time.Now(),
		})
		return
	}

	//One field per emoji, which Discord would reject past its field limit
	if len(mapping) > maxEmbedFields {
		b.respond(msg, ResponseSyntaxError{
			command:     setupRolesCommand,
			commandMsg:  msg.Content,
			description: fmt.Sprintf("A role assignment message can offer at most %d roles, but %d were given. Split them over several messages.", maxEmbedFields, len(mapping)),
			syntax:      b.setupRolesSyntax(),
			timestamp:   time.Now(),
		})
		return
	}

	embed := roleAssignmentEmbed(assignment, mapping)
	sent, err := b.platform.SendEmbed(msg.ChannelID, embed, nil)
	if err != nil {
		b.respond(msg, ResponseInternalError{
			command:     setupRolesCommand,
			commandMsg:  msg.Content,
			description: "Could not post the role assignment message.",
			err:         err,
			timestamp:   time.Now(),
		})
		return
	}
	messageID, err := guildmodels.ParseSnowflake(sent.ID)
	if err != nil {
		b.respond(msg, ResponseInternalError{
			command:     setupRolesCommand,
			commandMsg:  msg.Content,
			description: "Discord returned an invalid message id.",
			err:         err,
			timestamp:   time.Now(),
		})
		return
	}

	//Only register the mapping once the message definitely exists
	if err := b.store.Put(messageID, mapping); err != nil {
		logrus.Errorf("Failed to persist role mapping for message %v: %v", messageID, err)
		problems = append(problems, problem{
			input:  "Saving",
			reason: "The role mapping is active but could not be saved, so it may be lost when the bot restarts.",
		})
	}
	logrus.Infof("Created role-reaction message with ID %v in guild %v", messageID, msg.GuildID)

	for _, emoji := range assignment.order {
		if _, ok := mapping[emoji]; !ok {
			continue
		}
		err := b.platform.AddReaction(msg.ChannelID, sent.ID, emoji)
		if err != nil {
			logrus.Errorf("Failed to add reaction %v to message %v due to error %v", emoji, sent.ID, err)
		}
	}

	if len(problems) > 0 {
		b.respond(msg, ResponsePartialSuccess{
			command:     setupRolesCommand,
			commandMsg:  msg.Content,
			description: "Some of the role-emoji pairs were skipped.",
			problems:    problems,
			timestamp:   time.Now(),
		})
	}

	if err := b.platform.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		logrus.Debugf("Could not delete command message %v: %v", msg.ID, err)
	}
}

func roleAssignmentEmbed(assignment *roleAssignment, mapping guildmodels.RoleMapping) *discordgo.MessageEmbed {
	embed := discordgo.MessageEmbed{
		Title:       "Role Assignment",
		Type:        discordgo.EmbedTypeRich,
		Description: "React to get roles:",
		Color:       roleAssignmentColour,
	}
	for _, emoji := range assignment.order {
		if _, ok := mapping[emoji]; !ok {
			continue
		}
		role := assignment.roles[emoji]
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   role.Name,
			Value:  fmt.Sprintf("React with %v to get the %v role", emoji, role.Name),
			Inline: false,
		})
	}
	return &embed
}

//handleShowMappings lists every registered role assignment message with the roles it hands out
//command format: !show_mappings
func (b *RoleBot) handleShowMappings(msg *discordgo.MessageCreate) {
	table := b.store.All()
	if len(table) == 0 {
		b.respond(msg, ResponseInfo{
			commandMsg:  msg.Content,
			title:       "Current Role Mappings",
			description: "No role mappings have been set up.",
			timestamp:   time.Now(),
		})
		return
	}

	guildRoles, err := b.platform.GuildRoles(msg.GuildID)
	if err != nil {
		b.respond(msg, ResponseInternalError{
			command:     showMappingsCommand,
			commandMsg:  msg.Content,
			description: "Could not fetch the roles of this server.",
			err:         err,
			timestamp:   time.Now(),
		})
		return
	}
	roleNames := make(map[string]string, len(guildRoles))
	for _, role := range guildRoles {
		roleNames[role.ID] = role.Name
	}

	b.respond(msg, ResponseInfo{
		commandMsg:  msg.Content,
		title:       "Current Role Mappings",
		description: "The following role-emoji mappings are active:",
		fields:      mappingFields(table, roleNames, msg.GuildID, msg.ChannelID),
		timestamp:   time.Now(),
	})
}

func mappingFields(table guildmodels.MappingTable, roleNames map[string]string, guildID, channelID string) []*discordgo.MessageEmbedField {
	ids := table.MessageIDs()
	var fields []*discordgo.MessageEmbedField
	for i, messageID := range ids {
		if i == maxMappingFields-1 && len(ids) > maxMappingFields {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:  "...",
				Value: fmt.Sprintf("and %d more messages not shown", len(ids)-i),
			})
			break
		}
		link := fmt.Sprintf("https://discord.com/channels/%v/%v/%v", guildID, channelID, messageID)

		mapping := table[messageID]
		emojis := make([]string, 0, len(mapping))
		for emoji := range mapping {
			emojis = append(emojis, emoji)
		}
		sort.Strings(emojis)
		var value strings.Builder
		for _, emoji := range emojis {
			roleName, ok := roleNames[mapping[emoji].String()]
			if !ok {
				roleName = "Unknown Role"
			}
			fmt.Fprintf(&value, "%v → %v\n", emoji, roleName)
		}

		if value.Len() == 0 {
			value.WriteString("No emoji")
		}

		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("Message: [Jump to message](%v)", link),
			Value:  truncateRunes(value.String(), maxFieldValueRunes),
			Inline: false,
		})
	}
	return fields
}
