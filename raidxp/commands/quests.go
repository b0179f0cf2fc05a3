package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/fikanetics/raidxp/raidxp"
	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/utils"
)

var Quests = discord.SlashCommandCreate{
	Name:        "quests",
	Description: "📋 Active quests and the players closest to finishing them",
}

func QuestsHandler(b *raidxp.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		quests, err := b.QuestRepository.GetActive(ctx)
		if err != nil {
			slog.Error("Failed to load active quests",
				slog.String("type", "cmd"),
				slog.Any("error", err))
			return utils.EH.CreateErrorEmbed(e, "Failed to load quests. Please try again.")
		}

		if len(quests) == 0 {
			return utils.EH.CreateInfoEmbed(e, "No quests are active right now. The next rotation seeds a fresh set.")
		}

		var description strings.Builder
		for _, q := range quests {
			description.WriteString(fmt.Sprintf("**%s** · %s XP\n", q.Title, utils.FormatNumber(q.RewardXP)))
			if q.Description != "" {
				description.WriteString(q.Description + "\n")
			}
			description.WriteString(fmt.Sprintf("Ends in %s\n", formatDuration(time.Until(q.EndsAt))))

			progress, err := b.QuestRepository.ProgressForQuest(ctx, q.ID, config.QuestBoardTopSize)
			if err != nil {
				slog.Error("Failed to load quest progress",
					slog.String("type", "cmd"),
					slog.String("quest_key", q.QuestKey),
					slog.Any("error", err))
				continue
			}

			if len(progress) == 0 {
				description.WriteString("└ No progress yet.\n")
			}
			for _, p := range progress {
				name := "unknown"
				if p.Player != nil {
					name = p.Player.GameName
				}
				statusEmoji := "⏳"
				if p.Completed() {
					statusEmoji = "✅"
				}
				description.WriteString(fmt.Sprintf("%s **%s** %s %d/%d\n",
					statusEmoji, name, utils.ProgressBar(int64(p.Progress), int64(q.Target), 8), p.Progress, q.Target))
			}
			description.WriteString("\n")
		}

		embed := discord.NewEmbedBuilder().
			SetTitle("📋 Weekly Quests").
			SetDescription(strings.TrimRight(description.String(), "\n")).
			SetColor(config.InfoColor).
			SetTimestamp(time.Now()).
			Build()

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{embed},
		})
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 24 {
		days := hours / 24
		hours = hours % 24
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}

	return fmt.Sprintf("%dh %dm", hours, minutes)
}
