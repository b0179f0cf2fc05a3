package models

import (
	"time"

	"github.com/uptrace/bun"
)

// XPLedgerEntry records one XP mutation. The ledger is the audit trail;
// player_stats.xp stays the summary the two must agree on.
type XPLedgerEntry struct {
	bun.BaseModel `bun:"table:xp_ledger,alias:xl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	PlayerID  int64     `bun:"player_id,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	Reason    string    `bun:"reason,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`

	// Relations
	Player *Player `bun:"rel:belongs-to,join:player_id=id"`
}
