package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/fikanetics/raidxp/raidxp"
	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/leveling"
	"github.com/fikanetics/raidxp/raidxp/utils"
)

var Level = discord.SlashCommandCreate{
	Name:        "level",
	Description: "📈 View a player's level and raid stats",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "player",
			Description:  "In-game profile name",
			Required:     true,
			Autocomplete: true,
		},
	},
}

func LevelHandler(b *raidxp.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		name := strings.TrimSpace(e.SlashCommandInteractionData().String("player"))
		if name == "" {
			return utils.EH.CreateUserError(e, "Give me a profile name to look up.")
		}

		stats, err := b.PlayerRepository.GetStatsByName(ctx, name)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return utils.EH.CreateErrorEmbed(e, fmt.Sprintf("No stats for **%s** yet.", name))
			}
			slog.Error("Failed to load player stats",
				slog.String("type", "cmd"),
				slog.String("game_name", name),
				slog.Any("error", err))
			return utils.EH.CreateErrorEmbed(e, "Failed to load player stats. Please try again.")
		}

		displayName := name
		if stats.Player != nil {
			displayName = stats.Player.GameName
		}

		base := leveling.XPForLevel(stats.Level)
		next := leveling.NextLevelXP(stats.Level)
		progressLabel := fmt.Sprintf("%s %s / %s XP",
			utils.ProgressBar(stats.XP-base, next-base, 8),
			utils.FormatNumber(stats.XP-base),
			utils.FormatNumber(next-base))

		embed := discord.NewEmbedBuilder().
			SetTitle(fmt.Sprintf("%s — Lv %d (%s XP)", displayName, stats.Level, utils.FormatNumber(stats.XP))).
			SetColor(config.XPAccentColor).
			AddField("Kills", utils.FormatNumber(stats.Kills), true).
			AddField("Deaths", utils.FormatNumber(stats.Deaths), true).
			AddField("K/D", utils.FormatKD(stats.Kills, stats.Deaths), true).
			AddField("Extracts", utils.FormatNumber(stats.Extracts), true).
			AddField("Survivals", utils.FormatNumber(stats.Survivals), true).
			AddField("Dog Tags", utils.FormatNumber(stats.Dogtags), true).
			AddField(fmt.Sprintf("Progress to Lv %d", stats.Level+1), progressLabel, false).
			SetTimestamp(time.Now())

		if stats.Player != nil {
			if !stats.Player.Eligible {
				embed.SetDescription("⏸️ XP awards are paused for this player.")
			}
			embed.SetFooter(fmt.Sprintf("Last seen %s", stats.Player.LastSeen.UTC().Format("2006-01-02 15:04 UTC")), "")
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{embed.Build()},
		})
	}
}

// PlayerAutocomplete suggests profile names for any command option named
// "player". Suggestions come from the cached name list so typing stays snappy
// even when the database is busy.
func PlayerAutocomplete(b *raidxp.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		focused := e.Data.Focused()
		if focused.Name != "player" {
			return nil
		}

		searchTerm := ""
		if focused.Value != nil {
			var s string
			if err := json.Unmarshal(focused.Value, &s); err != nil {
				slog.Error("Failed to unmarshal focused.Value",
					slog.String("error", err.Error()))
				return e.AutocompleteResult([]discord.AutocompleteChoice{})
			}
			searchTerm = strings.TrimSpace(s)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		names := b.PlayerSearch.Suggest(ctx, searchTerm, config.AutocompleteLimit)

		choices := make([]discord.AutocompleteChoice, 0, len(names))
		for _, n := range names {
			choices = append(choices, discord.AutocompleteChoiceString{
				Name:  n,
				Value: n,
			})
		}
		return e.AutocompleteResult(choices)
	}
}
