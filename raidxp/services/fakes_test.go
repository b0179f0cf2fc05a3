package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	"github.com/uptrace/bun"
)

// stubPlayers serves canned stats rows.
type stubPlayers struct {
	stats []*models.PlayerStats
	err   error
}

func (s *stubPlayers) GetByName(context.Context, string) (*models.Player, error) {
	return nil, sql.ErrNoRows
}

func (s *stubPlayers) GetStatsByName(context.Context, string) (*models.PlayerStats, error) {
	return nil, sql.ErrNoRows
}

func (s *stubPlayers) TopByXP(_ context.Context, limit int) ([]*models.PlayerStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > len(s.stats) {
		limit = len(s.stats)
	}
	return s.stats[:limit], nil
}

func (s *stubPlayers) AllStats(context.Context) ([]*models.PlayerStats, error) {
	return s.stats, s.err
}

func (s *stubPlayers) AllNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.stats))
	for _, st := range s.stats {
		if st.Player != nil {
			names = append(names, st.Player.GameName)
		}
	}
	return names, s.err
}

func (s *stubPlayers) SetEligibility(context.Context, string, bool) (*models.Player, error) {
	return nil, sql.ErrNoRows
}

func (s *stubPlayers) UpsertByNameTx(context.Context, bun.Tx, string, time.Time) (*models.Player, error) {
	return nil, nil
}

func (s *stubPlayers) EnsureStatsTx(context.Context, bun.Tx, int64) error { return nil }

func (s *stubPlayers) IncrementCounterTx(context.Context, bun.Tx, int64, string) error { return nil }

func (s *stubPlayers) AddXPTx(context.Context, bun.Tx, int64, int64) (int64, int, error) {
	return 0, 0, nil
}

func (s *stubPlayers) UpdateLevelTx(context.Context, bun.Tx, int64, int) error { return nil }

// stubEvents serves canned per-window counts.
type stubEvents struct {
	counts []repositories.TypeCount
	err    error
}

func (s *stubEvents) InsertTx(context.Context, bun.Tx, *models.RaidEvent) error { return nil }

func (s *stubEvents) CountsBetween(context.Context, time.Time, time.Time) ([]repositories.TypeCount, error) {
	return s.counts, s.err
}

func (s *stubEvents) RecentByPlayer(context.Context, string, int) ([]*models.RaidEvent, error) {
	return nil, nil
}

// stubLedger serves canned per-window XP sums.
type stubLedger struct {
	sums []repositories.PlayerXPSum
	err  error
}

func (s *stubLedger) InsertTx(context.Context, bun.Tx, *models.XPLedgerEntry) error { return nil }

func (s *stubLedger) SumsBetween(context.Context, time.Time, time.Time) ([]repositories.PlayerXPSum, error) {
	return s.sums, s.err
}

func (s *stubLedger) RecentByPlayer(context.Context, int64, int) ([]*models.XPLedgerEntry, error) {
	return nil, nil
}

// stubQuests records rotation calls.
type stubQuests struct {
	active        int
	expired       int64
	expireErr     error
	deactivateAll int
	seeded        []*models.Quest
}

func (s *stubQuests) GetActive(context.Context) ([]*models.Quest, error) { return nil, nil }

func (s *stubQuests) CountActive(context.Context) (int, error) { return s.active, nil }

func (s *stubQuests) DeactivateExpired(context.Context, time.Time) (int64, error) {
	return s.expired, s.expireErr
}

func (s *stubQuests) DeactivateAll(context.Context) (int64, error) {
	s.deactivateAll++
	s.active = 0
	return 0, nil
}

func (s *stubQuests) SeedFresh(_ context.Context, quest *models.Quest) error {
	s.seeded = append(s.seeded, quest)
	return nil
}

func (s *stubQuests) ProgressForQuest(context.Context, int64, int) ([]*models.QuestProgress, error) {
	return nil, nil
}

func (s *stubQuests) ProgressForPlayer(context.Context, int64) ([]*models.QuestProgress, error) {
	return nil, nil
}

func (s *stubQuests) GetActiveByEventTypeTx(context.Context, bun.Tx, string) ([]*models.Quest, error) {
	return nil, nil
}

func (s *stubQuests) IncrementProgressTx(context.Context, bun.Tx, int64, int64, time.Time) error {
	return nil
}

func (s *stubQuests) CompleteDueTx(context.Context, bun.Tx, int64, time.Time) ([]repositories.CompletedQuest, error) {
	return nil, nil
}

func statsRow(id int64, name string, kills, deaths, survivals, xp int64) *models.PlayerStats {
	return &models.PlayerStats{
		PlayerID:  id,
		Kills:     kills,
		Deaths:    deaths,
		Survivals: survivals,
		XP:        xp,
		Level:     1,
		Player:    &models.Player{ID: id, GameName: name},
	}
}
