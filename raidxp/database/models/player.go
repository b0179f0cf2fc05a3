package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement"`
	GameName  string    `bun:"game_name,notnull,unique"`
	Eligible  bool      `bun:"eligible,notnull,default:false"`
	FirstSeen time.Time `bun:"first_seen,notnull,default:current_timestamp"`
	LastSeen  time.Time `bun:"last_seen,notnull,default:current_timestamp"`
}
