package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/uptrace/bun"
)

// Stat counter columns the progression engine is allowed to touch. Anything
// else is a programming error, not data.
var statColumns = map[string]bool{
	"kills":     true,
	"deaths":    true,
	"extracts":  true,
	"survivals": true,
	"dogtags":   true,
}

type PlayerRepository interface {
	GetByName(ctx context.Context, gameName string) (*models.Player, error)
	GetStatsByName(ctx context.Context, gameName string) (*models.PlayerStats, error)
	TopByXP(ctx context.Context, limit int) ([]*models.PlayerStats, error)
	AllStats(ctx context.Context) ([]*models.PlayerStats, error)
	AllNames(ctx context.Context) ([]string, error)
	SetEligibility(ctx context.Context, gameName string, eligible bool) (*models.Player, error)

	// Transactional operations used by the progression engine
	UpsertByNameTx(ctx context.Context, tx bun.Tx, gameName string, seenAt time.Time) (*models.Player, error)
	EnsureStatsTx(ctx context.Context, tx bun.Tx, playerID int64) error
	IncrementCounterTx(ctx context.Context, tx bun.Tx, playerID int64, column string) error
	AddXPTx(ctx context.Context, tx bun.Tx, playerID int64, amount int64) (xp int64, level int, err error)
	UpdateLevelTx(ctx context.Context, tx bun.Tx, playerID int64, level int) error
}

type playerRepository struct {
	db *bun.DB
}

func NewPlayerRepository(db *bun.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) GetByName(ctx context.Context, gameName string) (*models.Player, error) {
	player := new(models.Player)
	err := r.db.NewSelect().
		Model(player).
		Where("game_name = ?", gameName).
		Scan(ctx)

	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("Failed to get player",
				slog.String("type", "db"),
				slog.String("game_name", gameName),
				slog.Any("error", err))
		}
		return nil, err
	}
	return player, nil
}

func (r *playerRepository) GetStatsByName(ctx context.Context, gameName string) (*models.PlayerStats, error) {
	stats := new(models.PlayerStats)
	err := r.db.NewSelect().
		Model(stats).
		Relation("Player").
		Where("player.game_name = ?", gameName).
		Scan(ctx)

	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *playerRepository) TopByXP(ctx context.Context, limit int) ([]*models.PlayerStats, error) {
	var stats []*models.PlayerStats
	err := r.db.NewSelect().
		Model(&stats).
		Relation("Player").
		Order("ps.xp DESC").
		Limit(limit).
		Scan(ctx)

	return stats, err
}

func (r *playerRepository) AllStats(ctx context.Context) ([]*models.PlayerStats, error) {
	var stats []*models.PlayerStats
	err := r.db.NewSelect().
		Model(&stats).
		Relation("Player").
		Order("ps.xp DESC").
		Scan(ctx)

	return stats, err
}

func (r *playerRepository) AllNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.NewSelect().
		Model((*models.Player)(nil)).
		Column("game_name").
		Order("game_name ASC").
		Scan(ctx, &names)

	return names, err
}

// SetEligibility flips the XP opt-in flag. Past XP is never rewritten.
func (r *playerRepository) SetEligibility(ctx context.Context, gameName string, eligible bool) (*models.Player, error) {
	player := new(models.Player)
	res, err := r.db.NewUpdate().
		Model(player).
		Set("eligible = ?", eligible).
		Where("game_name = ?", gameName).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, sql.ErrNoRows
	}

	slog.Info("Player eligibility updated",
		slog.String("type", "db"),
		slog.String("game_name", gameName),
		slog.Bool("eligible", eligible))
	return player, nil
}

// UpsertByNameTx resolves or creates the player row, touching last_seen
// either way, and returns the row as stored.
func (r *playerRepository) UpsertByNameTx(ctx context.Context, tx bun.Tx, gameName string, seenAt time.Time) (*models.Player, error) {
	player := &models.Player{
		GameName:  gameName,
		FirstSeen: seenAt,
		LastSeen:  seenAt,
	}
	_, err := tx.NewInsert().
		Model(player).
		On("CONFLICT (game_name) DO UPDATE").
		Set("last_seen = EXCLUDED.last_seen").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player %s: %w", gameName, err)
	}
	return player, nil
}

// EnsureStatsTx creates the zero-valued stats row on first appearance.
func (r *playerRepository) EnsureStatsTx(ctx context.Context, tx bun.Tx, playerID int64) error {
	stats := &models.PlayerStats{PlayerID: playerID, Level: 1}
	_, err := tx.NewInsert().
		Model(stats).
		On("CONFLICT (player_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure stats for player %d: %w", playerID, err)
	}
	return nil
}

func (r *playerRepository) IncrementCounterTx(ctx context.Context, tx bun.Tx, playerID int64, column string) error {
	if !statColumns[column] {
		return fmt.Errorf("unknown stat column: %s", column)
	}
	_, err := tx.NewUpdate().
		Model((*models.PlayerStats)(nil)).
		Set("? = ? + 1", bun.Ident(column), bun.Ident(column)).
		Where("player_id = ?", playerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment %s for player %d: %w", column, playerID, err)
	}
	return nil
}

// AddXPTx adds amount to the player's XP and returns the new total together
// with the currently stored level so the caller can recompute it.
func (r *playerRepository) AddXPTx(ctx context.Context, tx bun.Tx, playerID int64, amount int64) (int64, int, error) {
	var xp int64
	var level int
	err := tx.NewUpdate().
		Model((*models.PlayerStats)(nil)).
		Set("xp = xp + ?", amount).
		Where("player_id = ?", playerID).
		Returning("xp, level").
		Scan(ctx, &xp, &level)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to add xp for player %d: %w", playerID, err)
	}
	return xp, level, nil
}

func (r *playerRepository) UpdateLevelTx(ctx context.Context, tx bun.Tx, playerID int64, level int) error {
	_, err := tx.NewUpdate().
		Model((*models.PlayerStats)(nil)).
		Set("level = ?", level).
		Where("player_id = ?", playerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update level for player %d: %w", playerID, err)
	}
	return nil
}
