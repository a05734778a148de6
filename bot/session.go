package bot

import "github.com/bwmarrin/discordgo"

//Platform abstracts the Discord API calls the bot makes, so that commands and reaction handling can be tested
//without a live gateway connection. Errors are classified by the discord package (discord.ErrNotFound etc).
type Platform interface {
	SelfID() string
	Guilds() []*discordgo.Guild
	Guild(guildID string) (*discordgo.Guild, error)
	GuildRoles(guildID string) ([]*discordgo.Role, error)
	Role(guildID, roleID string) (*discordgo.Role, error)
	Member(guildID, userID string) (*discordgo.Member, error)
	SendEmbed(channelID string, embed *discordgo.MessageEmbed, reference *discordgo.MessageReference) (*discordgo.Message, error)
	DeleteMessage(channelID, messageID string) error
	AddReaction(channelID, messageID, emoji string) error
	GrantRole(guildID, userID, roleID string) error
	RevokeRole(guildID, userID, roleID string) error
	UpdatePresence(text string) error
}
