package discord

import (
	"regexp"
	"strings"
)

var customEmojiRegex = regexp.MustCompile(`^<(a?):([^:<>]+):(\d+)>$`)

//EmojiAPIName converts an emoji as typed in a message into the form the reactions API expects.
//Custom emoji such as <:name:id> become name:id, unicode emoji are returned unchanged.
func EmojiAPIName(emoji string) string {
	matches := customEmojiRegex.FindStringSubmatch(strings.TrimSpace(emoji))
	if matches == nil {
		return strings.TrimSpace(emoji)
	}
	return matches[2] + ":" + matches[3]
}

//EmojiVariants lists every message form a reaction emoji may have been registered under.
//Reaction events carry the animated flag, but an admin may have typed either form.
func EmojiVariants(name, id string, animated bool) []string {
	if id == "" {
		return []string{name}
	}
	static := "<:" + name + ":" + id + ">"
	moving := "<a:" + name + ":" + id + ">"
	if animated {
		return []string{moving, static}
	}
	return []string{static, moving}
}
