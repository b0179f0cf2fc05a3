package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	Level,
	Leaderboard,
	Quests,
	RaidAdmin,
	Version,
}
