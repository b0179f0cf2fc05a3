package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/fikanetics/raidxp/raidxp"
	"github.com/fikanetics/raidxp/raidxp/commands"
	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/database"
	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	"github.com/fikanetics/raidxp/raidxp/handlers"
	"github.com/fikanetics/raidxp/raidxp/ingest"
	"github.com/fikanetics/raidxp/raidxp/leveling"
	"github.com/fikanetics/raidxp/raidxp/logger"
	"github.com/fikanetics/raidxp/raidxp/progression"
	"github.com/fikanetics/raidxp/raidxp/services"
	"github.com/fikanetics/raidxp/raidxp/utils"
	"github.com/fikanetics/raidxp/raidxp/web"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Initialize custom logger
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting RaidXP",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := raidxp.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	// Create context with longer timeout for database connection and initial setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Convert raidxp.DBConfig to database.DBConfig
	dbConfig := database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	}

	db, err := database.New(ctx, dbConfig)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	defer db.Close()

	b := raidxp.New(*cfg, version, commit)
	b.DB = db

	// Initialize repositories
	b.PlayerRepository = repositories.NewPlayerRepository(b.DB.BunDB())
	b.EventRepository = repositories.NewEventRepository(b.DB.BunDB())
	b.QuestRepository = repositories.NewQuestRepository(b.DB.BunDB())
	b.LedgerRepository = repositories.NewLedgerRepository(b.DB.BunDB())

	// Progression core: XP table from config, shared transaction engine
	b.LevelCalc = leveling.NewCalculator(leveling.NewConfig(cfg.Leveling.Awards))
	b.Engine = progression.NewEngine(db, b.PlayerRepository, b.EventRepository, b.QuestRepository, b.LedgerRepository, b.LevelCalc)

	// Initialize Spaces service only when snapshots are uploaded somewhere
	if cfg.Snapshots.Upload {
		b.SpacesService = services.NewSpacesService(
			cfg.Spaces.Key,
			cfg.Spaces.Secret,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.Root,
		)
	}

	b.PlayerSearch = services.NewPlayerSearchService(b.PlayerRepository)
	b.Leaderboards = services.NewLeaderboardService(b.PlayerRepository, b.EventRepository, b.LedgerRepository, cfg.Snapshots.Exclude)
	b.LeaderboardImages = services.NewLeaderboardImageService()
	b.QuestService = services.NewQuestService(b.QuestRepository, questSeeds(cfg.Quests.Seeds))
	if cfg.Snapshots.Enabled {
		b.Snapshots = services.NewSnapshotService(b.Leaderboards, b.SpacesService, cfg.Snapshots.Dir)
	}

	// Ingest pipeline: tail the raid log, parse lines, feed the engine
	rules, err := ingest.LoadRules(cfg.Ingest.RulesFile)
	if err != nil {
		slog.Error("Failed to load ingest rules",
			slog.String("type", "ingest"),
			slog.String("path", cfg.Ingest.RulesFile),
			slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Ingest rules loaded",
		slog.String("type", "ingest"),
		slog.String("path", cfg.Ingest.RulesFile),
		slog.Int("patterns", len(rules.Rules)))

	tailer := ingest.NewTailer(cfg.Ingest.LogFile, time.Duration(cfg.Ingest.PollMillis)*time.Millisecond)
	worker := ingest.NewWorker(tailer, ingest.NewParser(rules), b.Engine, time.Duration(cfg.Ingest.RetryMillis)*time.Millisecond)

	h := handler.New()

	// System commands
	h.Command("/version", commands.VersionHandler(b))

	// Player-facing commands
	h.Command("/level", handlers.WrapWithLogging("level", commands.LevelHandler(b)))
	h.Autocomplete("/level", commands.PlayerAutocomplete(b))
	h.Command("/leaderboard", handlers.WrapWithLogging("leaderboard", commands.LeaderboardHandler(b)))
	h.Command("/quests", handlers.WrapWithLogging("quests", commands.QuestsHandler(b)))

	// Admin commands
	h.Command("/raidadmin", handlers.WrapWithLogging("raidadmin", commands.RaidAdminHandler(b)))
	h.Autocomplete("/raidadmin", commands.PlayerAutocomplete(b))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("error_details", fmt.Sprintf("%+v", err)),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	bpm := utils.NewBackgroundProcessManager()

	bpm.StartProcess("ingest-worker", "tails the raid log and applies events", func(ctx context.Context) {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Ingest worker stopped",
				slog.String("type", "ingest"),
				slog.Any("error", err))
		}
	})

	bpm.StartProcess("quest-rotation", "retires expired quests and seeds new windows", func(ctx context.Context) {
		b.QuestService.Run(ctx, time.Duration(cfg.Quests.RotateMinutes)*time.Minute)
	})

	if cfg.Bot.LeaderboardChannel != 0 {
		updater := services.NewLeaderboardUpdater(b.Client, db, b.Leaderboards, cfg.Bot.LeaderboardChannel)
		bpm.StartProcess("leaderboard-updater", "keeps the pinned leaderboard embed current", func(ctx context.Context) {
			updater.Run(ctx, time.Duration(cfg.Bot.LeaderboardMinutes)*time.Minute)
		})
	}

	if b.Snapshots != nil {
		bpm.StartProcess("snapshots", "writes leaderboard JSON for the website", func(ctx context.Context) {
			b.Snapshots.Run(ctx, time.Duration(cfg.Snapshots.EverySeconds)*time.Second)
		})
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(cfg.Web.Addr, db, b.PlayerRepository, b.QuestRepository, b.Leaderboards, version, commit)
		bpm.StartProcess("web-api", "serves the read-only HTTP API", func(ctx context.Context) {
			srv.Run(ctx)
		})
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")

	if err := bpm.Shutdown(config.ShutdownTimeout); err != nil {
		slog.Error("Background processes did not stop cleanly",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}
}

// questSeeds turns the config rotation into a seed function. An empty list
// falls back to the built-in weekly set.
func questSeeds(seeds []raidxp.QuestSeed) services.SeedFunc {
	if len(seeds) == 0 {
		return nil
	}
	return func(start time.Time) []*models.Quest {
		quests := make([]*models.Quest, 0, len(seeds))
		for _, seed := range seeds {
			days := seed.Days
			if days <= 0 {
				days = 7
			}
			quests = append(quests, &models.Quest{
				QuestKey:    seed.Key,
				Title:       seed.Title,
				Description: seed.Description,
				EventType:   seed.EventType,
				Target:      seed.Target,
				RewardXP:    seed.RewardXP,
				StartsAt:    start,
				EndsAt:      start.Add(time.Duration(days) * 24 * time.Hour),
				Active:      true,
				CreatedAt:   start,
				UpdatedAt:   start,
			})
		}
		return quests
	}
}
