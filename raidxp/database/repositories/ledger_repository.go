package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/uptrace/bun"
)

// PlayerXPSum is one row of a per-player XP tally inside a time window.
type PlayerXPSum struct {
	GameName string `bun:"game_name"`
	XP       int64  `bun:"xp"`
}

type LedgerRepository interface {
	InsertTx(ctx context.Context, tx bun.Tx, entry *models.XPLedgerEntry) error
	SumsBetween(ctx context.Context, start, end time.Time) ([]PlayerXPSum, error)
	RecentByPlayer(ctx context.Context, playerID int64, limit int) ([]*models.XPLedgerEntry, error)
}

type ledgerRepository struct {
	db *bun.DB
}

func NewLedgerRepository(db *bun.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) InsertTx(ctx context.Context, tx bun.Tx, entry *models.XPLedgerEntry) error {
	_, err := tx.NewInsert().
		Model(entry).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record xp grant for player %d: %w", entry.PlayerID, err)
	}
	return nil
}

// SumsBetween totals granted XP per player over [start, end).
func (r *ledgerRepository) SumsBetween(ctx context.Context, start, end time.Time) ([]PlayerXPSum, error) {
	var sums []PlayerXPSum
	err := r.db.NewRaw(`
		SELECT p.game_name, SUM(xl.amount) AS xp
		FROM xp_ledger xl
		JOIN players p ON p.id = xl.player_id
		WHERE xl.created_at >= ? AND xl.created_at < ?
		GROUP BY p.game_name
	`, start, end).Scan(ctx, &sums)

	return sums, err
}

func (r *ledgerRepository) RecentByPlayer(ctx context.Context, playerID int64, limit int) ([]*models.XPLedgerEntry, error) {
	var entries []*models.XPLedgerEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)

	return entries, err
}
