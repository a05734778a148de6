package guildmodels_test

import (
	"math"
	"testing"

	"github.com/callummance/rolebot/guildmodels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeRoundTrip(t *testing.T) {
	ids := []guildmodels.Snowflake{0, 1, 175928847299117063, math.MaxInt64, math.MaxUint64}
	for _, id := range ids {
		parsed, err := guildmodels.ParseSnowflake(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseSnowflakeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "-1", "18446744073709551616", "12 3"} {
		_, err := guildmodels.ParseSnowflake(s)
		assert.Error(t, err, "%q should not parse", s)
	}
}

func TestMappingTableCloneIsDeep(t *testing.T) {
	table := guildmodels.MappingTable{
		42: guildmodels.RoleMapping{"🔥": 7},
	}
	clone := table.Clone()
	clone[42]["🎮"] = 8
	clone[43] = guildmodels.RoleMapping{}

	assert.Len(t, table, 1)
	assert.Equal(t, guildmodels.RoleMapping{"🔥": 7}, table[42])
}

func TestMessageIDsSorted(t *testing.T) {
	table := guildmodels.MappingTable{
		300: {},
		100: {},
		200: {},
	}
	assert.Equal(t, []guildmodels.Snowflake{100, 200, 300}, table.MessageIDs())
}
