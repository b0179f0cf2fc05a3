package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
)

// LeaderboardRow is one ranked player. Raids counts concluded raids only:
// every raid ends in a SURVIVE or a DEATH.
type LeaderboardRow struct {
	Name   string `json:"name"`
	Raids  int64  `json:"raids"`
	Kills  int64  `json:"kills"`
	Deaths int64  `json:"deaths"`
	XP     int64  `json:"xp"`
}

type LeaderboardService struct {
	players repositories.PlayerRepository
	events  repositories.EventRepository
	ledger  repositories.LedgerRepository
	exclude map[string]bool
}

// NewLeaderboardService builds the ranking layer. Names in exclude are kept
// out of public boards; headless client accounts are always kept out.
func NewLeaderboardService(
	players repositories.PlayerRepository,
	events repositories.EventRepository,
	ledger repositories.LedgerRepository,
	exclude []string,
) *LeaderboardService {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			excluded[name] = true
		}
	}
	return &LeaderboardService{
		players: players,
		events:  events,
		ledger:  ledger,
		exclude: excluded,
	}
}

func (ls *LeaderboardService) hidden(name string) bool {
	lower := strings.ToLower(name)
	return ls.exclude[lower] || strings.HasPrefix(lower, "headless")
}

// Top returns the straight XP ranking for in-Discord display.
func (ls *LeaderboardService) Top(ctx context.Context, limit int) ([]*models.PlayerStats, error) {
	return ls.players.TopByXP(ctx, limit)
}

// AllTime builds the lifetime board from the stats summary.
func (ls *LeaderboardService) AllTime(ctx context.Context) ([]LeaderboardRow, error) {
	stats, err := ls.players.AllStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load player stats: %w", err)
	}

	rows := make([]LeaderboardRow, 0, len(stats))
	for _, s := range stats {
		if s.Player == nil || ls.hidden(s.Player.GameName) {
			continue
		}
		rows = append(rows, LeaderboardRow{
			Name:   s.Player.GameName,
			Raids:  s.Survivals + s.Deaths,
			Kills:  s.Kills,
			Deaths: s.Deaths,
			XP:     s.XP,
		})
	}
	sortRows(rows)
	return rows, nil
}

// Window builds a board covering the trailing duration, counting events and
// summing ledger grants instead of the lifetime totals.
func (ls *LeaderboardService) Window(ctx context.Context, span time.Duration) ([]LeaderboardRow, error) {
	end := time.Now().UTC()
	start := end.Add(-span)

	counts, err := ls.events.CountsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	sums, err := ls.ledger.SumsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to sum xp grants: %w", err)
	}

	byName := make(map[string]*LeaderboardRow)
	row := func(name string) *LeaderboardRow {
		r, ok := byName[name]
		if !ok {
			r = &LeaderboardRow{Name: name}
			byName[name] = r
		}
		return r
	}

	for _, c := range counts {
		if ls.hidden(c.GameName) {
			continue
		}
		switch c.Type {
		case "KILL":
			row(c.GameName).Kills = c.Count
		case "DEATH":
			r := row(c.GameName)
			r.Deaths = c.Count
			r.Raids += c.Count
		case "SURVIVE":
			row(c.GameName).Raids += c.Count
		}
	}
	for _, s := range sums {
		if ls.hidden(s.GameName) {
			continue
		}
		row(s.GameName).XP = s.XP
	}

	rows := make([]LeaderboardRow, 0, len(byName))
	for _, r := range byName {
		rows = append(rows, *r)
	}
	sortRows(rows)
	return rows, nil
}

// sortRows ranks by XP, then kills, then fewest deaths, with name as the
// final tie-break so output order is stable.
func sortRows(rows []LeaderboardRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].XP != rows[j].XP {
			return rows[i].XP > rows[j].XP
		}
		if rows[i].Kills != rows[j].Kills {
			return rows[i].Kills > rows[j].Kills
		}
		if rows[i].Deaths != rows[j].Deaths {
			return rows[i].Deaths < rows[j].Deaths
		}
		return rows[i].Name < rows[j].Name
	})
}
