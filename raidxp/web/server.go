package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/database"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	"github.com/fikanetics/raidxp/raidxp/services"
)

// Server is the read-only HTTP surface over the progression store. It runs
// in the bot process and shares its repositories.
type Server struct {
	app          *fiber.App
	addr         string
	db           *database.DB
	players      repositories.PlayerRepository
	quests       repositories.QuestRepository
	leaderboards *services.LeaderboardService
	version      string
	commit       string
}

func NewServer(
	addr string,
	db *database.DB,
	players repositories.PlayerRepository,
	quests repositories.QuestRepository,
	leaderboards *services.LeaderboardService,
	version string,
	commit string,
) *Server {
	s := &Server{
		addr:         addr,
		db:           db,
		players:      players,
		quests:       quests,
		leaderboards: leaderboards,
		version:      version,
		commit:       commit,
	}

	app := fiber.New(fiber.Config{
		AppName:      "RaidXP API",
		ServerHeader: "RaidXP",
		ErrorHandler: CustomErrorHandler,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(LoggingMiddleware())
	app.Use(APIRateLimit())

	s.app = app
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")
	api.Get("/health", HealthCheck(s))
	api.Get("/players", PlayersIndex(s))
	api.Get("/players/:name", PlayerDetail(s))
	api.Get("/quests", QuestsIndex(s))
	api.Get("/leaderboard", LeaderboardAPI(s))

	s.app.Use(func(c *fiber.Ctx) error {
		slog.Warn("No route matched for request",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", GetIPAddress(c)),
		)
		return SendError(c, fiber.StatusNotFound, "NOT_FOUND", "The requested endpoint does not exist", nil)
	})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) {
	go func() {
		slog.Info("Starting API server",
			slog.String("type", "sys"),
			slog.String("address", s.addr))
		if err := s.app.Listen(s.addr); err != nil {
			slog.Error("API server stopped",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("API server shutdown error",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}
}

// CustomErrorHandler handles application errors
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return SendError(c, code, "REQUEST_FAILED", message, nil)
}
