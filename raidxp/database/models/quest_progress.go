package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QuestProgress is one player's counter toward one quest. Progress never
// decreases, and CompletedAt is written exactly once, the first time
// progress reaches the quest's target.
type QuestProgress struct {
	bun.BaseModel `bun:"table:quest_progress,alias:qp"`

	QuestID     int64      `bun:"quest_id,pk"`
	PlayerID    int64      `bun:"player_id,pk"`
	Progress    int        `bun:"progress,notnull,default:0"`
	CompletedAt *time.Time `bun:"completed_at"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`

	// Relations
	Quest  *Quest  `bun:"rel:belongs-to,join:quest_id=id"`
	Player *Player `bun:"rel:belongs-to,join:player_id=id"`
}

func (p *QuestProgress) Completed() bool {
	return p.CompletedAt != nil
}
