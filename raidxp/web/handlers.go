package web

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fikanetics/raidxp/raidxp/config"
	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/services"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError carries a machine-readable code next to the human message.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// SendSuccess sends a successful JSON response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return c.Status(fiber.StatusOK).JSON(&APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// SendError sends an error JSON response
func SendError(c *fiber.Ctx, statusCode int, code, message string, details map[string]string) error {
	return c.Status(statusCode).JSON(&APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	})
}

type playerSummary struct {
	Name      string  `json:"name"`
	Level     int     `json:"level"`
	XP        int64   `json:"xp"`
	Kills     int64   `json:"kills"`
	Deaths    int64   `json:"deaths"`
	Extracts  int64   `json:"extracts"`
	Survivals int64   `json:"survivals"`
	Dogtags   int64   `json:"dogtags"`
	KD        float64 `json:"kd"`
}

type playerDetailResponse struct {
	playerSummary
	Eligible  bool              `json:"eligible"`
	FirstSeen time.Time         `json:"firstSeen"`
	LastSeen  time.Time         `json:"lastSeen"`
	Quests    []playerQuestItem `json:"quests"`
}

type playerQuestItem struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Progress  int    `json:"progress"`
	Target    int    `json:"target"`
	Completed bool   `json:"completed"`
}

type questItem struct {
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	EventType   string          `json:"eventType"`
	Target      int             `json:"target"`
	RewardXP    int64           `json:"rewardXp"`
	StartsAt    time.Time       `json:"startsAt"`
	EndsAt      time.Time       `json:"endsAt"`
	Top         []questTopEntry `json:"top"`
}

type questTopEntry struct {
	Name      string `json:"name"`
	Progress  int    `json:"progress"`
	Completed bool   `json:"completed"`
}

func toPlayerSummary(st *models.PlayerStats) playerSummary {
	name := ""
	if st.Player != nil {
		name = st.Player.GameName
	}
	return playerSummary{
		Name:      name,
		Level:     st.Level,
		XP:        st.XP,
		Kills:     st.Kills,
		Deaths:    st.Deaths,
		Extracts:  st.Extracts,
		Survivals: st.Survivals,
		Dogtags:   st.Dogtags,
		KD:        st.KDRatio(),
	}
}

// HealthCheck reports process identity; useful behind a reverse proxy.
func HealthCheck(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return SendSuccess(c, fiber.Map{
			"status":  "healthy",
			"version": s.version,
			"commit":  s.commit,
		}, "Health check successful")
	}
}

// PlayersIndex lists players ranked by XP. ?limit= caps the page, default 25.
func PlayersIndex(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 25)
		if limit < 1 {
			limit = 1
		}
		if limit > 100 {
			limit = 100
		}

		stats, err := s.players.TopByXP(c.Context(), limit)
		if err != nil {
			slog.Error("Failed to list players",
				slog.String("type", "db"),
				slog.Any("error", err))
			return SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list players", nil)
		}

		out := make([]playerSummary, 0, len(stats))
		for _, st := range stats {
			out = append(out, toPlayerSummary(st))
		}
		return SendSuccess(c, out, "")
	}
}

// PlayerDetail returns one player's stats plus active quest progress.
func PlayerDetail(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil || name == "" {
			return SendError(c, fiber.StatusBadRequest, "BAD_REQUEST", "Invalid player name", nil)
		}

		ctx := c.Context()

		stats, err := s.players.GetStatsByName(ctx, name)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return SendError(c, fiber.StatusNotFound, "NOT_FOUND", "Player not found", nil)
			}
			slog.Error("Failed to load player",
				slog.String("type", "db"),
				slog.String("game_name", name),
				slog.Any("error", err))
			return SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load player", nil)
		}

		detail := playerDetailResponse{
			playerSummary: toPlayerSummary(stats),
			Quests:        []playerQuestItem{},
		}
		if stats.Player != nil {
			detail.Eligible = stats.Player.Eligible
			detail.FirstSeen = stats.Player.FirstSeen
			detail.LastSeen = stats.Player.LastSeen

			progress, err := s.quests.ProgressForPlayer(ctx, stats.Player.ID)
			if err != nil {
				slog.Error("Failed to load player quest progress",
					slog.String("type", "db"),
					slog.String("game_name", name),
					slog.Any("error", err))
			} else {
				for _, p := range progress {
					if p.Quest == nil {
						continue
					}
					detail.Quests = append(detail.Quests, playerQuestItem{
						Key:       p.Quest.QuestKey,
						Title:     p.Quest.Title,
						Progress:  p.Progress,
						Target:    p.Quest.Target,
						Completed: p.Completed(),
					})
				}
			}
		}

		return SendSuccess(c, detail, "")
	}
}

// QuestsIndex lists the active quest window with the top progress per quest.
func QuestsIndex(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.Context()

		quests, err := s.quests.GetActive(ctx)
		if err != nil {
			slog.Error("Failed to load active quests",
				slog.String("type", "db"),
				slog.Any("error", err))
			return SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load quests", nil)
		}

		out := make([]questItem, 0, len(quests))
		for _, q := range quests {
			item := questItem{
				Key:         q.QuestKey,
				Title:       q.Title,
				Description: q.Description,
				EventType:   q.EventType,
				Target:      q.Target,
				RewardXP:    q.RewardXP,
				StartsAt:    q.StartsAt,
				EndsAt:      q.EndsAt,
				Top:         []questTopEntry{},
			}

			progress, err := s.quests.ProgressForQuest(ctx, q.ID, config.QuestBoardTopSize)
			if err != nil {
				slog.Error("Failed to load quest progress",
					slog.String("type", "db"),
					slog.String("quest_key", q.QuestKey),
					slog.Any("error", err))
			} else {
				for _, p := range progress {
					if p.Player == nil {
						continue
					}
					item.Top = append(item.Top, questTopEntry{
						Name:      p.Player.GameName,
						Progress:  p.Progress,
						Completed: p.Completed(),
					})
				}
			}

			out = append(out, item)
		}

		return SendSuccess(c, out, "")
	}
}

// LeaderboardAPI serves the same rows the snapshot files carry.
// ?window=24h|7d|all, default all.
func LeaderboardAPI(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		window := c.Query("window", "all")

		var span time.Duration
		switch window {
		case "all":
		case "24h":
			span = 24 * time.Hour
		case "7d":
			span = 7 * 24 * time.Hour
		default:
			return SendError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "window must be one of 24h, 7d, all", nil)
		}

		ctx := c.Context()

		rows, err := leaderboardFor(ctx, s, span)
		if err != nil {
			slog.Error("Failed to load leaderboard",
				slog.String("type", "db"),
				slog.String("window", window),
				slog.Any("error", err))
			return SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load leaderboard", nil)
		}

		return SendSuccess(c, fiber.Map{
			"range":   window,
			"players": rows,
		}, "")
	}
}

func leaderboardFor(ctx context.Context, s *Server, span time.Duration) ([]services.LeaderboardRow, error) {
	if span == 0 {
		return s.leaderboards.AllTime(ctx)
	}
	return s.leaderboards.Window(ctx, span)
}
