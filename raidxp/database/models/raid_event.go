package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RaidEvent is one extracted gameplay event, retained append-only for audit
// and replay. Rows are never updated or deleted by the application.
type RaidEvent struct {
	bun.BaseModel `bun:"table:raid_events,alias:re"`

	ID        int64             `bun:"id,pk,autoincrement"`
	Timestamp time.Time         `bun:"ts,notnull"`
	Type      string            `bun:"type,notnull"`
	GameName  string            `bun:"game_name,notnull"`
	Attrs     map[string]string `bun:"attrs,type:jsonb"`
	CreatedAt time.Time         `bun:"created_at,notnull,default:current_timestamp"`
}
