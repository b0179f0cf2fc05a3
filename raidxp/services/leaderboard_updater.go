package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/database"
	"github.com/fikanetics/raidxp/raidxp/database/models"
)

const leaderboardMessageKey = "leaderboard_msg_id"

// LeaderboardUpdater keeps one standings message fresh in the configured
// channel, editing it in place and recreating it if it went missing.
type LeaderboardUpdater struct {
	client       bot.Client
	db           *database.DB
	leaderboards *LeaderboardService
	channelID    snowflake.ID
}

func NewLeaderboardUpdater(client bot.Client, db *database.DB, leaderboards *LeaderboardService, channelID snowflake.ID) *LeaderboardUpdater {
	return &LeaderboardUpdater{
		client:       client,
		db:           db,
		leaderboards: leaderboards,
		channelID:    channelID,
	}
}

// Run updates immediately and then on every tick until the context ends.
func (u *LeaderboardUpdater) Run(ctx context.Context, every time.Duration) {
	if u.channelID == 0 {
		slog.Info("Leaderboard channel not configured, updater disabled")
		return
	}

	if err := u.update(ctx); err != nil {
		slog.Error("Leaderboard update failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.update(ctx); err != nil {
				slog.Error("Leaderboard update failed", slog.Any("error", err))
			}
		}
	}
}

func (u *LeaderboardUpdater) update(ctx context.Context) error {
	stats, err := u.leaderboards.Top(ctx, config.LeaderboardPageSize)
	if err != nil {
		return fmt.Errorf("failed to load standings: %w", err)
	}

	embed := BuildTopEmbed(stats)

	if msgID, err := u.messageID(ctx); err == nil {
		_, err = u.client.Rest().UpdateMessage(u.channelID, msgID, discord.NewMessageUpdateBuilder().
			SetEmbeds(embed).
			Build())
		if err == nil {
			return nil
		}
		slog.Warn("Leaderboard message edit failed, recreating",
			slog.String("message_id", msgID.String()),
			slog.Any("error", err))
	}

	msg, err := u.client.Rest().CreateMessage(u.channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		Build())
	if err != nil {
		return fmt.Errorf("failed to post leaderboard message: %w", err)
	}
	return u.db.SetAppMeta(ctx, leaderboardMessageKey, msg.ID.String())
}

func (u *LeaderboardUpdater) messageID(ctx context.Context) (snowflake.ID, error) {
	raw, err := u.db.GetAppMeta(ctx, leaderboardMessageKey)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, fmt.Errorf("no stored leaderboard message")
	}
	return snowflake.Parse(raw)
}

// BuildTopEmbed renders the standings embed shared by the pinned message
// and the /leaderboard command.
func BuildTopEmbed(stats []*models.PlayerStats) discord.Embed {
	lines := make([]string, 0, len(stats))
	for i, st := range stats {
		name := "unknown"
		if st.Player != nil {
			name = st.Player.GameName
		}
		lines = append(lines, fmt.Sprintf("**%d. %s** — Lv %d • %d XP • %dK/%dD",
			i+1, name, st.Level, st.XP, st.Kills, st.Deaths))
	}

	description := "(No data yet)"
	if len(lines) > 0 {
		description = strings.Join(lines, "\n")
	}

	return discord.NewEmbedBuilder().
		SetTitle(config.LeaderboardTitle).
		SetDescription(description).
		SetColor(config.EmbedDefaultColor).
		SetTimestamp(time.Now()).
		Build()
}
