package models

import (
	"github.com/uptrace/bun"
)

type PlayerStats struct {
	bun.BaseModel `bun:"table:player_stats,alias:ps"`

	PlayerID  int64 `bun:"player_id,pk"`
	Kills     int64 `bun:"kills,notnull,default:0"`
	Deaths    int64 `bun:"deaths,notnull,default:0"`
	Extracts  int64 `bun:"extracts,notnull,default:0"`
	Survivals int64 `bun:"survivals,notnull,default:0"`
	Dogtags   int64 `bun:"dogtags,notnull,default:0"`
	XP        int64 `bun:"xp,notnull,default:0"`
	Level     int   `bun:"level,notnull,default:1"`

	// Relations
	Player *Player `bun:"rel:belongs-to,join:player_id=id"`
}

// KDRatio returns kills per death, with deaths floored at one so fresh
// players don't divide by zero.
func (s *PlayerStats) KDRatio() float64 {
	deaths := s.Deaths
	if deaths == 0 {
		deaths = 1
	}
	return float64(s.Kills) / float64(deaths)
}
