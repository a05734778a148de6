package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	infoMessageColour  int = 0x2ecc71
	warnMessageColour  int = 0xbdb900
	errorMessageColour int = 0xbd1b00
)

//Discord embed limits
const (
	maxEmbedFields     = 25
	maxFieldValueRunes = 1024
)

//BotResponse represents the result of a command which can be both communicated over discord and written to the log.
type BotResponse interface {
	DiscordResponse() *discordgo.MessageEmbed
	WriteToLog()
}

//problem describes one part of a command's input which could not be used
type problem struct {
	input  string
	reason string
}

//ResponseInfo carries a plain informational message back to the user
type ResponseInfo struct {
	//The entire text contents of the message
	commandMsg  string
	title       string
	description string
	fields      []*discordgo.MessageEmbedField
	timestamp   time.Time
}

//DiscordResponse builds an embed which can be sent back to whoever sent a command message.
func (r ResponseInfo) DiscordResponse() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       r.title,
		Type:        discordgo.EmbedTypeRich,
		Description: r.description,
		Timestamp:   r.timestamp.Format(time.RFC3339),
		Color:       infoMessageColour,
		Fields:      r.fields,
	}
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseInfo) WriteToLog() {
	logrus.Infof("%v Completed command %v successfully.", logLineLabel(r.timestamp), r.commandMsg)
}

//ResponsePartialSuccess will be returned when a command has executed but with issues
type ResponsePartialSuccess struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable description of the issue
	description string
	problems    []problem
	timestamp   time.Time
}

//DiscordResponse builds an embed which can be sent back to whoever sent a command message.
func (r ResponsePartialSuccess) DiscordResponse() *discordgo.MessageEmbed {
	description := fmt.Sprintf("Completed %v command but with errors: \n%v", r.command, r.description)
	return &discordgo.MessageEmbed{
		Title:       "Partial success...",
		Type:        discordgo.EmbedTypeRich,
		Description: description,
		Timestamp:   r.timestamp.Format(time.RFC3339),
		Color:       warnMessageColour,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Log ID: %d", r.timestamp.UnixNano()),
		},
		Fields: problemsToFields(r.problems),
	}
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponsePartialSuccess) WriteToLog() {
	logrus.Infof("%v Completed command %v but with errors: %v.", logLineLabel(r.timestamp), r.commandMsg, r.problems)
}

//ResponseFailure will be returned when none of the input to a command could be used
type ResponseFailure struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg  string
	description string
	problems    []problem
	timestamp   time.Time
}

//DiscordResponse builds an embed which can be sent back to whoever sent a command message.
func (r ResponseFailure) DiscordResponse() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Nothing was set up",
		Type:        discordgo.EmbedTypeRich,
		Description: r.description,
		Timestamp:   r.timestamp.Format(time.RFC3339),
		Color:       errorMessageColour,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Log ID: %d", r.timestamp.UnixNano()),
		},
		Fields: problemsToFields(r.problems),
	}
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseFailure) WriteToLog() {
	logrus.Infof("%v Command %v failed: %v | problems: %v", logLineLabel(r.timestamp), r.commandMsg, r.description, r.problems)
}

//ResponseSyntaxError will be returned when there was an issue with the user's input
type ResponseSyntaxError struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable description of the issue
	description string
	//A description of the correct syntax
	syntax    string
	timestamp time.Time
}

//DiscordResponse builds an embed which can be sent back to whoever sent a command message.
func (r ResponseSyntaxError) DiscordResponse() *discordgo.MessageEmbed {
	description := fmt.Sprintf("Sorry, but there was a problem with the data you supplied for the %v command: \n%v", r.command, r.description)
	return &discordgo.MessageEmbed{
		Title:       "Uh-oh, there was something wrong with that command",
		Type:        discordgo.EmbedTypeRich,
		Description: description,
		Timestamp:   r.timestamp.Format(time.RFC3339),
		Color:       errorMessageColour,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Log ID: %d", r.timestamp.UnixNano()),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Your command", Value: truncateRunes(r.commandMsg, maxFieldValueRunes)},
			{Name: "Correct syntax", Value: r.syntax},
		},
	}
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseSyntaxError) WriteToLog() {
	logrus.Infof("%v Syntax error in command %v: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

//ResponseInternalError will be returned when there was some kind of error within the bot or when communicating with
//APIs
type ResponseInternalError struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable description of the issue
	description string
	err         error
	timestamp   time.Time
}

//DiscordResponse builds an embed which can be sent back to whoever sent a command message.
func (r ResponseInternalError) DiscordResponse() *discordgo.MessageEmbed {
	description := fmt.Sprintf("Oops! I encountered an unexpected error whilst running your %v command. Please try again later or file a bug report.", r.command)
	return &discordgo.MessageEmbed{
		Title:       "Oops, something went wrong ;w;",
		Type:        discordgo.EmbedTypeRich,
		Description: description,
		Timestamp:   r.timestamp.Format(time.RFC3339),
		Color:       errorMessageColour,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Log ID: %d", r.timestamp.UnixNano()),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Error", Value: r.description},
			{Name: "Details", Value: writeLogRef(r.timestamp)},
		},
	}
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseInternalError) WriteToLog() {
	logrus.Errorf("%v Internal error whilst executing command %v: %v | error: %v", logLineLabel(r.timestamp), r.commandMsg, r.description, r.err)
}

//ResponseNotAllowed will be returned when a user tried to run a command that they do not have the correct role for
type ResponseNotAllowed struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	timestamp  time.Time
}

//DiscordResponse builds an embed which can be sent back to whoever sent a command message.
func (r ResponseNotAllowed) DiscordResponse() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "That's illegal m8",
		Type:        discordgo.EmbedTypeRich,
		Description: "I'm sorry Dave, I can't let you do that...",
		Timestamp:   r.timestamp.Format(time.RFC3339),
		Color:       errorMessageColour,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Log ID: %d", r.timestamp.UnixNano()),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: fmt.Sprintf("The %v command can only be used by server administrators.", r.command)},
		},
	}
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseNotAllowed) WriteToLog() {
	logrus.Infof("%v Rejected command `%v` as the sender did not have the correct priveliges", logLineLabel(r.timestamp), r.commandMsg)
}

/////////////////////
//Utility Functions//
/////////////////////
func writeLogRef(t time.Time) string {
	return fmt.Sprintf("More details can be found on log line %v", t.UnixNano())
}

func logLineLabel(t time.Time) string {
	return fmt.Sprintf("#%v# | ", t.UnixNano())
}

func problemsToFields(problems []problem) []*discordgo.MessageEmbedField {
	var res []*discordgo.MessageEmbedField
	for i, p := range problems {
		if i == maxEmbedFields-1 && len(problems) > maxEmbedFields {
			res = append(res, &discordgo.MessageEmbedField{
				Name:  "...",
				Value: fmt.Sprintf("and %d more", len(problems)-i),
			})
			break
		}
		name := p.input
		if name == "" {
			name = "(empty)"
		}
		res = append(res, &discordgo.MessageEmbedField{
			Name:   truncateRunes(name, 256),
			Value:  truncateRunes(p.reason, maxFieldValueRunes),
			Inline: false,
		})
	}
	return res
}

func (p problem) String() string {
	return p.input + ": " + p.reason
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
