package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

//rolePair is one Role:emoji argument of the setup_roles command
type rolePair struct {
	raw      string
	roleName string
	emoji    string
}

//splitRolePairs splits whitespace separated Role:emoji pairs on their first colon, so custom emoji such as
//Role:<:name:id> keep their own colons. Pairs which cannot be split are returned as problems.
func splitRolePairs(args string) ([]rolePair, []problem) {
	var pairs []rolePair
	var invalid []problem
	for _, raw := range strings.Fields(args) {
		parts := strings.SplitN(raw, ":", 2)
		switch {
		case len(parts) < 2:
			invalid = append(invalid, problem{input: raw, reason: "Invalid format for pair. Use Role:emoji"})
		case parts[0] == "":
			invalid = append(invalid, problem{input: raw, reason: "Missing role name. Use Role:emoji"})
		case parts[1] == "":
			invalid = append(invalid, problem{input: raw, reason: "Missing emoji. Use Role:emoji"})
		default:
			pairs = append(pairs, rolePair{raw: raw, roleName: parts[0], emoji: parts[1]})
		}
	}
	return pairs, invalid
}

//rolesByName indexes roles by their exact name. If several roles share a name the first one listed wins.
func rolesByName(roles []*discordgo.Role) map[string]*discordgo.Role {
	res := make(map[string]*discordgo.Role, len(roles))
	for _, role := range roles {
		if _, exists := res[role.Name]; !exists {
			res[role.Name] = role
		}
	}
	return res
}

//roleAssignment collects emoji to role associations, remembering the order emoji first appeared in.
//A repeated emoji replaces the role it was previously assigned to.
type roleAssignment struct {
	order []string
	roles map[string]*discordgo.Role
}

func newRoleAssignment() *roleAssignment {
	return &roleAssignment{roles: make(map[string]*discordgo.Role)}
}

func (a *roleAssignment) set(emoji string, role *discordgo.Role) {
	if _, exists := a.roles[emoji]; !exists {
		a.order = append(a.order, emoji)
	}
	a.roles[emoji] = role
}

func (a *roleAssignment) len() int {
	return len(a.order)
}
