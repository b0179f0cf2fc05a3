package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fikanetics/raidxp/raidxp"
	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/utils"
)

var RaidAdmin = discord.SlashCommandCreate{
	Name:        "raidadmin",
	Description: "🔧 Operator controls for the progression pipeline",
	Options: []discord.ApplicationCommandOption{
		&discord.ApplicationCommandOptionSubCommand{
			Name:        "rotate",
			Description: "Deactivate all quests and seed a fresh window now",
		},
		&discord.ApplicationCommandOptionSubCommand{
			Name:        "eligibility",
			Description: "Toggle XP awards for a player (existing XP is untouched)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:         "player",
					Description:  "In-game profile name",
					Required:     true,
					Autocomplete: true,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "enabled",
					Description: "true to award XP, false to pause",
					Required:    true,
				},
			},
		},
		&discord.ApplicationCommandOptionSubCommand{
			Name:        "snapshot",
			Description: "Write leaderboard snapshots immediately",
		},
	},
}

func RaidAdminHandler(b *raidxp.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !hasAdminRole(b, e) {
			return utils.EH.CreatePermissionError(e, "manage the progression pipeline")
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		data := e.SlashCommandInteractionData()
		subCmd := *data.SubCommandName

		switch subCmd {
		case "rotate":
			return handleRotate(ctx, b, e)
		case "eligibility":
			return handleEligibility(ctx, b, e, strings.TrimSpace(data.String("player")), data.Bool("enabled"))
		case "snapshot":
			return handleSnapshot(ctx, b, e)
		default:
			return utils.EH.CreateUserError(e, "Unknown subcommand")
		}
	}
}

// hasAdminRole checks the calling member against bot.admin_role. An empty
// config value leaves the command open, which is the right default for
// single-guild private deployments.
func hasAdminRole(b *raidxp.Bot, e *handler.CommandEvent) bool {
	if b.Cfg.Bot.AdminRole == "" {
		return true
	}

	member := e.Member()
	if member == nil {
		return false
	}

	roleID, err := snowflake.Parse(b.Cfg.Bot.AdminRole)
	if err != nil {
		slog.Warn("Invalid admin_role in config, denying admin command",
			slog.String("type", "cmd"),
			slog.String("admin_role", b.Cfg.Bot.AdminRole))
		return false
	}

	for _, id := range member.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func handleRotate(ctx context.Context, b *raidxp.Bot, e *handler.CommandEvent) error {
	if err := b.QuestService.ForceRotate(ctx); err != nil {
		slog.Error("Forced quest rotation failed",
			slog.String("type", "cmd"),
			slog.String("moderator", e.User().Username),
			slog.Any("error", err))
		return utils.EH.CreateErrorEmbed(e, "Quest rotation failed. Check the logs.")
	}

	slog.Info("Quest rotation forced",
		slog.String("type", "cmd"),
		slog.String("moderator", e.User().Username))
	return utils.EH.CreateSuccessEmbed(e, "All quests rotated. A fresh set is live.")
}

func handleEligibility(ctx context.Context, b *raidxp.Bot, e *handler.CommandEvent, name string, enabled bool) error {
	if name == "" {
		return utils.EH.CreateUserError(e, "Give me a profile name.")
	}

	player, err := b.PlayerRepository.SetEligibility(ctx, name, enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.EH.CreateNotFoundError(e, "Player", name)
		}
		slog.Error("Eligibility update failed",
			slog.String("type", "cmd"),
			slog.String("game_name", name),
			slog.Any("error", err))
		return utils.EH.CreateErrorEmbed(e, "Eligibility update failed. Please try again.")
	}

	slog.Info("Eligibility changed",
		slog.String("type", "cmd"),
		slog.String("game_name", player.GameName),
		slog.Bool("eligible", enabled),
		slog.String("moderator", e.User().Username))

	if enabled {
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("XP awards enabled for **%s**.", player.GameName))
	}
	return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("XP awards paused for **%s**. Earned XP stays as is.", player.GameName))
}

func handleSnapshot(ctx context.Context, b *raidxp.Bot, e *handler.CommandEvent) error {
	if b.Snapshots == nil {
		return utils.EH.CreateErrorEmbed(e, "Snapshots are disabled in the config.")
	}

	if err := e.DeferCreateMessage(false); err != nil {
		return err
	}

	if err := b.Snapshots.WriteAll(ctx); err != nil {
		slog.Error("Forced snapshot failed",
			slog.String("type", "cmd"),
			slog.String("moderator", e.User().Username),
			slog.Any("error", err))
		_, err = e.CreateFollowupMessage(discord.MessageCreate{
			Content: "❌ Snapshot write failed. Check the logs.",
		})
		return err
	}

	_, err := e.CreateFollowupMessage(discord.MessageCreate{
		Content: "✅ Leaderboard snapshots written.",
	})
	return err
}
