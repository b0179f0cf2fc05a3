package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/uptrace/bun"
)

// CompletedQuest is what CompleteDueTx hands back for each quest a player
// just finished, enough to grant the reward and announce it.
type CompletedQuest struct {
	QuestID  int64  `bun:"id"`
	QuestKey string `bun:"quest_key"`
	Title    string `bun:"title"`
	RewardXP int64  `bun:"reward_xp"`
}

type QuestRepository interface {
	GetActive(ctx context.Context) ([]*models.Quest, error)
	CountActive(ctx context.Context) (int, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	DeactivateAll(ctx context.Context) (int64, error)
	SeedFresh(ctx context.Context, quest *models.Quest) error
	ProgressForQuest(ctx context.Context, questID int64, limit int) ([]*models.QuestProgress, error)
	ProgressForPlayer(ctx context.Context, playerID int64) ([]*models.QuestProgress, error)

	// Transactional operations used by the progression engine
	GetActiveByEventTypeTx(ctx context.Context, tx bun.Tx, eventType string) ([]*models.Quest, error)
	IncrementProgressTx(ctx context.Context, tx bun.Tx, questID, playerID int64, now time.Time) error
	CompleteDueTx(ctx context.Context, tx bun.Tx, playerID int64, now time.Time) ([]CompletedQuest, error)
}

type questRepository struct {
	db *bun.DB
}

func NewQuestRepository(db *bun.DB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) GetActive(ctx context.Context) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Where("active = TRUE").
		Order("id ASC").
		Scan(ctx)

	return quests, err
}

func (r *questRepository) CountActive(ctx context.Context) (int, error) {
	return r.db.NewSelect().
		Model((*models.Quest)(nil)).
		Where("active = TRUE").
		Count(ctx)
}

func (r *questRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Quest)(nil)).
		Set("active = FALSE").
		Set("updated_at = ?", now).
		Where("active = TRUE").
		Where("ends_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired quests: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

func (r *questRepository) DeactivateAll(ctx context.Context) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Quest)(nil)).
		Set("active = FALSE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("active = TRUE").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate quests: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

// SeedFresh installs a quest for a new window, keyed by quest_key. Reusing a
// key refreshes the window and wipes the previous window's progress so every
// player starts the new week from zero.
func (r *questRepository) SeedFresh(ctx context.Context, quest *models.Quest) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(quest).
			On("CONFLICT (quest_key) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("description = EXCLUDED.description").
			Set("event_type = EXCLUDED.event_type").
			Set("target = EXCLUDED.target").
			Set("reward_xp = EXCLUDED.reward_xp").
			Set("starts_at = EXCLUDED.starts_at").
			Set("ends_at = EXCLUDED.ends_at").
			Set("active = TRUE").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("*").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed quest %s: %w", quest.QuestKey, err)
		}

		_, err = tx.NewDelete().
			Model((*models.QuestProgress)(nil)).
			Where("quest_id = ?", quest.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset progress for quest %s: %w", quest.QuestKey, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Quest seeded",
		slog.String("type", "db"),
		slog.String("quest_key", quest.QuestKey),
		slog.String("event_type", quest.EventType),
		slog.Int("target", quest.Target),
		slog.Time("ends_at", quest.EndsAt))
	return nil
}

func (r *questRepository) ProgressForQuest(ctx context.Context, questID int64, limit int) ([]*models.QuestProgress, error) {
	var progress []*models.QuestProgress
	err := r.db.NewSelect().
		Model(&progress).
		Relation("Player").
		Where("qp.quest_id = ?", questID).
		Order("qp.progress DESC").
		Limit(limit).
		Scan(ctx)

	return progress, err
}

func (r *questRepository) ProgressForPlayer(ctx context.Context, playerID int64) ([]*models.QuestProgress, error) {
	var progress []*models.QuestProgress
	err := r.db.NewSelect().
		Model(&progress).
		Relation("Quest").
		Where("qp.player_id = ?", playerID).
		Where("quest.active = TRUE").
		Order("quest.id ASC").
		Scan(ctx)

	return progress, err
}

func (r *questRepository) GetActiveByEventTypeTx(ctx context.Context, tx bun.Tx, eventType string) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := tx.NewSelect().
		Model(&quests).
		Where("active = TRUE").
		Where("event_type = ?", eventType).
		Order("id ASC").
		Scan(ctx)

	return quests, err
}

// IncrementProgressTx bumps a player's counter on a quest, creating the row
// on first contribution. Progress keeps counting past the target; completion
// is decided separately so it fires exactly once.
func (r *questRepository) IncrementProgressTx(ctx context.Context, tx bun.Tx, questID, playerID int64, now time.Time) error {
	progress := &models.QuestProgress{
		QuestID:   questID,
		PlayerID:  playerID,
		Progress:  1,
		UpdatedAt: now,
	}
	_, err := tx.NewInsert().
		Model(progress).
		On("CONFLICT (quest_id, player_id) DO UPDATE").
		Set("progress = quest_progress.progress + 1").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment progress on quest %d for player %d: %w", questID, playerID, err)
	}
	return nil
}

// CompleteDueTx marks every active quest the player has just satisfied and
// returns them. The completed_at IS NULL guard makes completion one-shot.
func (r *questRepository) CompleteDueTx(ctx context.Context, tx bun.Tx, playerID int64, now time.Time) ([]CompletedQuest, error) {
	var completed []CompletedQuest
	err := tx.NewRaw(`
		UPDATE quest_progress AS qp
		SET completed_at = ?, updated_at = ?
		FROM quests AS q
		WHERE q.id = qp.quest_id
		  AND qp.player_id = ?
		  AND q.active = TRUE
		  AND qp.progress >= q.target
		  AND qp.completed_at IS NULL
		RETURNING q.id, q.quest_key, q.title, q.reward_xp
	`, now, now, playerID).Scan(ctx, &completed)
	if err != nil {
		return nil, fmt.Errorf("failed to complete quests for player %d: %w", playerID, err)
	}
	return completed, nil
}
