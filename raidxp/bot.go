package raidxp

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"github.com/fikanetics/raidxp/raidxp/database"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	"github.com/fikanetics/raidxp/raidxp/leveling"
	"github.com/fikanetics/raidxp/raidxp/progression"
	"github.com/fikanetics/raidxp/raidxp/services"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB

	PlayerRepository repositories.PlayerRepository
	EventRepository  repositories.EventRepository
	QuestRepository  repositories.QuestRepository
	LedgerRepository repositories.LedgerRepository

	LevelCalc         *leveling.Calculator
	Engine            *progression.Engine
	QuestService      *services.QuestService
	Leaderboards      *services.LeaderboardService
	LeaderboardImages *services.LeaderboardImageService
	PlayerSearch      *services.PlayerSearchService
	Snapshots         *services.SnapshotService
	SpacesService     *services.SpacesService
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("RaidXP bot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the raid feed"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
