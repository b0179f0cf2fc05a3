package progression

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database"
	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	"github.com/fikanetics/raidxp/raidxp/ingest"
	"github.com/fikanetics/raidxp/raidxp/leveling"
	"github.com/uptrace/bun"
)

// counterColumns maps event types to the stat they bump. HEADSHOT has no
// counter of its own: the kill it decorates already counted.
var counterColumns = map[string]string{
	"KILL":    "kills",
	"DEATH":   "deaths",
	"EXTRACT": "extracts",
	"SURVIVE": "survivals",
	"DOGTAG":  "dogtags",
}

// txRunner is the transaction boundary. *bun.DB satisfies it.
type txRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

// Engine folds extracted events into player state. Each event is one
// transaction: the event row, stat counters, XP, ledger and quest progress
// commit together or not at all.
type Engine struct {
	db      txRunner
	players repositories.PlayerRepository
	events  repositories.EventRepository
	quests  repositories.QuestRepository
	ledger  repositories.LedgerRepository
	calc    *leveling.Calculator
}

func NewEngine(
	db *database.DB,
	players repositories.PlayerRepository,
	events repositories.EventRepository,
	quests repositories.QuestRepository,
	ledger repositories.LedgerRepository,
	calc *leveling.Calculator,
) *Engine {
	return &Engine{
		db:      db.BunDB(),
		players: players,
		events:  events,
		quests:  quests,
		ledger:  ledger,
		calc:    calc,
	}
}

func (e *Engine) Apply(ctx context.Context, ev ingest.Event) error {
	return e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		player, err := e.players.UpsertByNameTx(ctx, tx, ev.Actor, ev.Timestamp)
		if err != nil {
			return err
		}
		if err := e.players.EnsureStatsTx(ctx, tx, player.ID); err != nil {
			return err
		}

		if err := e.events.InsertTx(ctx, tx, &models.RaidEvent{
			Timestamp: ev.Timestamp,
			Type:      ev.Type,
			GameName:  ev.Actor,
			Attrs:     ev.Attrs,
		}); err != nil {
			return err
		}

		if column, ok := counterColumns[ev.Type]; ok {
			if err := e.players.IncrementCounterTx(ctx, tx, player.ID, column); err != nil {
				return err
			}
		}

		if award := e.calc.AwardFor(ev.Type); award > 0 && player.Eligible {
			if err := e.grantXP(ctx, tx, player, award, "event:"+ev.Type); err != nil {
				return err
			}
		}

		return e.advanceQuests(ctx, tx, player, ev.Type)
	})
}

// advanceQuests bumps progress on every active quest tracking this event
// type, then settles whatever the player has just finished.
func (e *Engine) advanceQuests(ctx context.Context, tx bun.Tx, player *models.Player, eventType string) error {
	quests, err := e.quests.GetActiveByEventTypeTx(ctx, tx, eventType)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, q := range quests {
		if err := e.quests.IncrementProgressTx(ctx, tx, q.ID, player.ID, now); err != nil {
			return err
		}
	}

	completed, err := e.quests.CompleteDueTx(ctx, tx, player.ID, now)
	if err != nil {
		return err
	}
	for _, c := range completed {
		slog.Info("Quest completed",
			slog.String("type", "ingest"),
			slog.String("game_name", player.GameName),
			slog.String("quest_key", c.QuestKey),
			slog.Int64("reward_xp", c.RewardXP))

		if c.RewardXP > 0 && player.Eligible {
			if err := e.grantXP(ctx, tx, player, c.RewardXP, "quest:"+c.QuestKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// grantXP credits the amount, records it in the ledger and promotes the
// player if the new total crosses a threshold. Levels only move up here;
// lowering an award table never demotes anyone.
func (e *Engine) grantXP(ctx context.Context, tx bun.Tx, player *models.Player, amount int64, reason string) error {
	xp, level, err := e.players.AddXPTx(ctx, tx, player.ID, amount)
	if err != nil {
		return err
	}

	if err := e.ledger.InsertTx(ctx, tx, &models.XPLedgerEntry{
		PlayerID: player.ID,
		Amount:   amount,
		Reason:   reason,
	}); err != nil {
		return err
	}

	if newLevel := leveling.LevelFromXP(xp); newLevel > level {
		if err := e.players.UpdateLevelTx(ctx, tx, player.ID, newLevel); err != nil {
			return err
		}
		slog.Info("Player leveled up",
			slog.String("type", "ingest"),
			slog.String("game_name", player.GameName),
			slog.Int("level", newLevel),
			slog.Int64("xp", xp))
	}
	return nil
}
