package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/fikanetics/raidxp/raidxp"
	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/services"
	"github.com/fikanetics/raidxp/raidxp/utils"
)

var Leaderboard = discord.SlashCommandCreate{
	Name:        "leaderboard",
	Description: "🏆 Top players by XP",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "window",
			Description: "Time window to rank over",
			Required:    false,
			Choices: []discord.ApplicationCommandOptionChoiceString{
				{Name: "All time", Value: "all"},
				{Name: "Last 7 days", Value: "7d"},
				{Name: "Last 24 hours", Value: "24h"},
			},
		},
		discord.ApplicationCommandOptionBool{
			Name:        "image",
			Description: "Attach a rendered card of the all-time top 10 instead of text pages",
			Required:    false,
		},
	},
}

func LeaderboardHandler(b *raidxp.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		data := e.SlashCommandInteractionData()
		window := data.String("window")
		if window == "" {
			window = "all"
		}

		if data.Bool("image") {
			return sendLeaderboardImage(ctx, b, e)
		}

		rows, err := leaderboardRows(ctx, b, window)
		if err != nil {
			slog.Error("Failed to load leaderboard",
				slog.String("type", "cmd"),
				slog.String("window", window),
				slog.Any("error", err))
			return utils.EH.CreateErrorEmbed(e, "Failed to load the leaderboard. Please try again.")
		}

		if len(rows) == 0 {
			return utils.EH.CreateInfoEmbed(e, "No raids recorded in this window yet.")
		}

		totalPages := int(math.Ceil(float64(len(rows)) / float64(config.LeaderboardPageSize)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * config.LeaderboardPageSize
				end := min(start+config.LeaderboardPageSize, len(rows))

				var description strings.Builder
				for i, row := range rows[start:end] {
					description.WriteString(fmt.Sprintf("**%d. %s** — %s XP • %dK/%dD • %d raids\n",
						start+i+1, row.Name, utils.FormatNumber(row.XP), row.Kills, row.Deaths, row.Raids))
				}

				embed.
					SetTitle(windowTitle(window)).
					SetDescription(description.String()).
					SetColor(config.XPAccentColor).
					SetFooter(fmt.Sprintf("Page %d/%d • Total: %d", page+1, totalPages, len(rows)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func leaderboardRows(ctx context.Context, b *raidxp.Bot, window string) ([]services.LeaderboardRow, error) {
	switch window {
	case "7d":
		return b.Leaderboards.Window(ctx, 7*24*time.Hour)
	case "24h":
		return b.Leaderboards.Window(ctx, 24*time.Hour)
	default:
		return b.Leaderboards.AllTime(ctx)
	}
}

func windowTitle(window string) string {
	switch window {
	case "7d":
		return "FIKA — XP Leaderboard (Last 7 Days)"
	case "24h":
		return "FIKA — XP Leaderboard (Last 24 Hours)"
	default:
		return "FIKA — XP Leaderboard (All Time)"
	}
}

// sendLeaderboardImage renders the all-time top 10 through headless Chrome
// and posts it as a PNG attachment. Falls back to the text embed when the
// renderer is unavailable.
func sendLeaderboardImage(ctx context.Context, b *raidxp.Bot, e *handler.CommandEvent) error {
	if err := e.DeferCreateMessage(false); err != nil {
		return err
	}

	stats, err := b.Leaderboards.Top(ctx, config.LeaderboardPageSize)
	if err != nil {
		slog.Error("Failed to load top players",
			slog.String("type", "cmd"),
			slog.Any("error", err))
		_, err = e.CreateFollowupMessage(discord.MessageCreate{
			Content: "❌ Failed to load the leaderboard. Please try again.",
		})
		return err
	}

	imageBytes, err := b.LeaderboardImages.GenerateTopImage(ctx, stats)
	if err != nil {
		slog.Error("Failed to generate leaderboard image",
			slog.String("type", "cmd"),
			slog.Any("error", err))
		_, err = e.CreateFollowupMessage(discord.MessageCreate{
			Embeds: []discord.Embed{services.BuildTopEmbed(stats)},
		})
		return err
	}

	_, err = e.CreateFollowupMessage(discord.MessageCreate{
		Files: []*discord.File{
			{
				Name:   fmt.Sprintf("leaderboard_%d.png", time.Now().Unix()),
				Reader: bytes.NewReader(imageBytes),
			},
		},
	})
	if err != nil {
		slog.Error("Failed to send leaderboard image",
			slog.String("type", "cmd"),
			slog.Any("error", err))
	}
	return err
}
