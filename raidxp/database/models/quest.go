package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID          int64     `bun:"id,pk,autoincrement"`
	QuestKey    string    `bun:"quest_key,notnull,unique"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description"`
	EventType   string    `bun:"event_type,notnull"`
	Target      int       `bun:"target,notnull"`
	RewardXP    int64     `bun:"reward_xp,notnull,default:0"`
	StartsAt    time.Time `bun:"starts_at,notnull"`
	EndsAt      time.Time `bun:"ends_at,notnull"`
	Active      bool      `bun:"active,notnull,default:false"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Expired reports whether the quest's window has closed.
func (q *Quest) Expired(now time.Time) bool {
	return !q.EndsAt.After(now)
}
