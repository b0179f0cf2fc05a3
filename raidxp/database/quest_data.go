package database

import (
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
)

// DefaultQuestWindow is how long one seeded rotation runs.
const DefaultQuestWindow = 7 * 24 * time.Hour

// DefaultQuestSeeds is the built-in weekly rotation, used whenever the config
// file does not define its own seeds.
func DefaultQuestSeeds(start time.Time) []*models.Quest {
	end := start.Add(DefaultQuestWindow)
	return []*models.Quest{
		{
			QuestKey:    "dogtags_week",
			Title:       "Collect 5 dog tags",
			Description: "Take 5 dog tags off fallen PMCs this week.",
			EventType:   "DOGTAG",
			Target:      5,
			RewardXP:    250,
			StartsAt:    start,
			EndsAt:      end,
			Active:      true,
			CreatedAt:   start,
			UpdatedAt:   start,
		},
		{
			QuestKey:    "survive_week",
			Title:       "Survive 5 raids",
			Description: "Make it out alive 5 times this week.",
			EventType:   "SURVIVE",
			Target:      5,
			RewardXP:    250,
			StartsAt:    start,
			EndsAt:      end,
			Active:      true,
			CreatedAt:   start,
			UpdatedAt:   start,
		},
	}
}
