package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/uptrace/bun"
)

// TypeCount is one row of a per-player event tally inside a time window.
type TypeCount struct {
	GameName string `bun:"game_name"`
	Type     string `bun:"type"`
	Count    int64  `bun:"count"`
}

type EventRepository interface {
	InsertTx(ctx context.Context, tx bun.Tx, event *models.RaidEvent) error
	CountsBetween(ctx context.Context, start, end time.Time) ([]TypeCount, error)
	RecentByPlayer(ctx context.Context, gameName string, limit int) ([]*models.RaidEvent, error)
}

type eventRepository struct {
	db *bun.DB
}

func NewEventRepository(db *bun.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) InsertTx(ctx context.Context, tx bun.Tx, event *models.RaidEvent) error {
	_, err := tx.NewInsert().
		Model(event).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert %s event for %s: %w", event.Type, event.GameName, err)
	}
	return nil
}

// CountsBetween tallies events per player and type over [start, end).
func (r *eventRepository) CountsBetween(ctx context.Context, start, end time.Time) ([]TypeCount, error) {
	var counts []TypeCount
	err := r.db.NewSelect().
		Model((*models.RaidEvent)(nil)).
		ColumnExpr("game_name").
		ColumnExpr("type").
		ColumnExpr("COUNT(*) AS count").
		Where("ts >= ? AND ts < ?", start, end).
		GroupExpr("game_name, type").
		Scan(ctx, &counts)

	return counts, err
}

func (r *eventRepository) RecentByPlayer(ctx context.Context, gameName string, limit int) ([]*models.RaidEvent, error) {
	var events []*models.RaidEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("game_name = ?", gameName).
		Order("ts DESC").
		Limit(limit).
		Scan(ctx)

	return events, err
}
