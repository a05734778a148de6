package guildmodels

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

//Snowflake is a platform-assigned identifier for a message, role, user or guild.
type Snowflake uint64

//ParseSnowflake converts the base-10 textual form of an identifier back into a Snowflake
func ParseSnowflake(s string) (Snowflake, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%q is not a valid snowflake", s)
	}
	return Snowflake(id), nil
}

//String returns the base-10 form used by the discord API and by the persisted mapping file
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

//RoleMapping maps emoji tokens to the role that reacting with them grants. Unicode emoji are stored as the
//grapheme itself, custom emoji in their message format (<:name:id> or <a:name:id>).
type RoleMapping map[string]Snowflake

//Clone returns a copy of the mapping that shares no state with the original
func (m RoleMapping) Clone() RoleMapping {
	res := make(RoleMapping, len(m))
	for emoji, roleID := range m {
		res[emoji] = roleID
	}
	return res
}

//MappingTable holds every tracked reaction role message, keyed by message ID
type MappingTable map[Snowflake]RoleMapping

//Clone returns a deep copy of the table
func (t MappingTable) Clone() MappingTable {
	res := make(MappingTable, len(t))
	for msgID, mapping := range t {
		res[msgID] = mapping.Clone()
	}
	return res
}

//MessageIDs returns the tracked message IDs in ascending order
func (t MappingTable) MessageIDs() []Snowflake {
	ids := make([]Snowflake, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
