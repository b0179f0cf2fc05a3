package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database"
	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
)

// SeedFunc produces the quest set for a rotation window starting at start.
type SeedFunc func(start time.Time) []*models.Quest

type QuestService struct {
	quests repositories.QuestRepository
	seeds  SeedFunc
}

func NewQuestService(quests repositories.QuestRepository, seeds SeedFunc) *QuestService {
	if seeds == nil {
		seeds = database.DefaultQuestSeeds
	}
	return &QuestService{
		quests: quests,
		seeds:  seeds,
	}
}

// Rotate retires expired quests and, once nothing is left running, installs
// the next window. Safe to call repeatedly; a live window is left alone.
func (qs *QuestService) Rotate(ctx context.Context) error {
	now := time.Now().UTC()

	expired, err := qs.quests.DeactivateExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to retire expired quests: %w", err)
	}
	if expired > 0 {
		slog.Info("Quests expired",
			slog.String("type", "db"),
			slog.Int64("count", expired))
	}

	active, err := qs.quests.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active quests: %w", err)
	}
	if active > 0 {
		return nil
	}

	for _, quest := range qs.seeds(now) {
		if err := qs.quests.SeedFresh(ctx, quest); err != nil {
			return err
		}
	}
	return nil
}

// ForceRotate ends the current window immediately and seeds a new one.
func (qs *QuestService) ForceRotate(ctx context.Context) error {
	retired, err := qs.quests.DeactivateAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to end current quest window: %w", err)
	}
	slog.Info("Quest window force-rotated",
		slog.String("type", "db"),
		slog.Int64("retired", retired))

	return qs.Rotate(ctx)
}

// Run rotates immediately and then keeps doing so on the given interval
// until the context ends.
func (qs *QuestService) Run(ctx context.Context, every time.Duration) {
	if err := qs.Rotate(ctx); err != nil {
		slog.Error("Quest rotation failed",
			slog.String("type", "db"),
			slog.Any("error", err))
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := qs.Rotate(ctx); err != nil {
				slog.Error("Quest rotation failed",
					slog.String("type", "db"),
					slog.Any("error", err))
			}
		}
	}
}
