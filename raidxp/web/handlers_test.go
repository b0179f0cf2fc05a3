package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	"github.com/fikanetics/raidxp/raidxp/services"
)

type fakePlayers struct {
	stats    []*models.PlayerStats
	byName   map[string]*models.PlayerStats
	err      error
	gotLimit int
}

func (f *fakePlayers) GetByName(ctx context.Context, gameName string) (*models.Player, error) {
	return nil, sql.ErrNoRows
}

func (f *fakePlayers) GetStatsByName(ctx context.Context, gameName string) (*models.PlayerStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.byName[gameName]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return st, nil
}

func (f *fakePlayers) TopByXP(ctx context.Context, limit int) ([]*models.PlayerStats, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.stats) {
		limit = len(f.stats)
	}
	return f.stats[:limit], nil
}

func (f *fakePlayers) AllStats(ctx context.Context) ([]*models.PlayerStats, error) {
	return f.stats, f.err
}

func (f *fakePlayers) AllNames(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakePlayers) SetEligibility(ctx context.Context, gameName string, eligible bool) (*models.Player, error) {
	return nil, sql.ErrNoRows
}

func (f *fakePlayers) UpsertByNameTx(ctx context.Context, tx bun.Tx, gameName string, seenAt time.Time) (*models.Player, error) {
	return nil, nil
}
func (f *fakePlayers) EnsureStatsTx(ctx context.Context, tx bun.Tx, playerID int64) error { return nil }
func (f *fakePlayers) IncrementCounterTx(ctx context.Context, tx bun.Tx, playerID int64, column string) error {
	return nil
}
func (f *fakePlayers) AddXPTx(ctx context.Context, tx bun.Tx, playerID int64, amount int64) (int64, int, error) {
	return 0, 1, nil
}
func (f *fakePlayers) UpdateLevelTx(ctx context.Context, tx bun.Tx, playerID int64, level int) error {
	return nil
}

type fakeQuests struct {
	active      []*models.Quest
	activeErr   error
	byPlayer    map[int64][]*models.QuestProgress
	byPlayerErr error
	byQuest     map[int64][]*models.QuestProgress
}

func (f *fakeQuests) GetActive(ctx context.Context) ([]*models.Quest, error) {
	return f.active, f.activeErr
}

func (f *fakeQuests) CountActive(ctx context.Context) (int, error) { return len(f.active), nil }

func (f *fakeQuests) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeQuests) DeactivateAll(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeQuests) SeedFresh(ctx context.Context, quest *models.Quest) error { return nil }

func (f *fakeQuests) ProgressForQuest(ctx context.Context, questID int64, limit int) ([]*models.QuestProgress, error) {
	return f.byQuest[questID], nil
}

func (f *fakeQuests) ProgressForPlayer(ctx context.Context, playerID int64) ([]*models.QuestProgress, error) {
	if f.byPlayerErr != nil {
		return nil, f.byPlayerErr
	}
	return f.byPlayer[playerID], nil
}

func (f *fakeQuests) GetActiveByEventTypeTx(ctx context.Context, tx bun.Tx, eventType string) ([]*models.Quest, error) {
	return nil, nil
}

func (f *fakeQuests) IncrementProgressTx(ctx context.Context, tx bun.Tx, questID, playerID int64, now time.Time) error {
	return nil
}

func (f *fakeQuests) CompleteDueTx(ctx context.Context, tx bun.Tx, playerID int64, now time.Time) ([]repositories.CompletedQuest, error) {
	return nil, nil
}

type fakeEvents struct {
	counts []repositories.TypeCount
}

func (f *fakeEvents) InsertTx(ctx context.Context, tx bun.Tx, event *models.RaidEvent) error {
	return nil
}

func (f *fakeEvents) CountsBetween(ctx context.Context, start, end time.Time) ([]repositories.TypeCount, error) {
	return f.counts, nil
}

func (f *fakeEvents) RecentByPlayer(ctx context.Context, gameName string, limit int) ([]*models.RaidEvent, error) {
	return nil, nil
}

type fakeLedger struct {
	sums []repositories.PlayerXPSum
}

func (f *fakeLedger) InsertTx(ctx context.Context, tx bun.Tx, entry *models.XPLedgerEntry) error {
	return nil
}

func (f *fakeLedger) SumsBetween(ctx context.Context, start, end time.Time) ([]repositories.PlayerXPSum, error) {
	return f.sums, nil
}

func (f *fakeLedger) RecentByPlayer(ctx context.Context, playerID int64, limit int) ([]*models.XPLedgerEntry, error) {
	return nil, nil
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func newTestServer(players repositories.PlayerRepository, quests repositories.QuestRepository, boards *services.LeaderboardService) *Server {
	return NewServer(":0", nil, players, quests, boards, "1.2.3", "abc1234")
}

func doGet(t *testing.T, s *Server, path string) (int, apiEnvelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env apiEnvelope
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env apiEnvelope, out interface{}) {
	t.Helper()
	require.NotNil(t, env.Data)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func statsRow(id int64, name string, level int, xp, kills, deaths int64) *models.PlayerStats {
	return &models.PlayerStats{
		PlayerID: id,
		Kills:    kills,
		Deaths:   deaths,
		XP:       xp,
		Level:    level,
		Player: &models.Player{
			ID:       id,
			GameName: name,
			Eligible: true,
		},
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(&fakePlayers{}, &fakeQuests{}, nil)

	status, env := doGet(t, s, "/api/health")

	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, "Health check successful", env.Message)

	var data struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Commit  string `json:"commit"`
	}
	decodeData(t, env, &data)
	assert.Equal(t, "healthy", data.Status)
	assert.Equal(t, "1.2.3", data.Version)
	assert.Equal(t, "abc1234", data.Commit)
}

func TestPlayersIndex(t *testing.T) {
	players := &fakePlayers{stats: []*models.PlayerStats{
		statsRow(1, "Prapor", 4, 1500, 10, 4),
		statsRow(2, "Therapist", 2, 300, 1, 2),
	}}
	s := newTestServer(players, &fakeQuests{}, nil)

	status, env := doGet(t, s, "/api/players")

	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var data []playerSummary
	decodeData(t, env, &data)
	require.Len(t, data, 2)
	assert.Equal(t, "Prapor", data[0].Name)
	assert.Equal(t, 4, data[0].Level)
	assert.Equal(t, int64(1500), data[0].XP)
	assert.InDelta(t, 2.5, data[0].KD, 0.001)
	assert.Equal(t, "Therapist", data[1].Name)
}

func TestPlayersIndexClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"default", "", 25},
		{"above cap", "?limit=500", 100},
		{"zero", "?limit=0", 1},
		{"negative", "?limit=-5", 1},
		{"garbage falls back to default", "?limit=abc", 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			players := &fakePlayers{}
			s := newTestServer(players, &fakeQuests{}, nil)

			status, _ := doGet(t, s, "/api/players"+tt.query)

			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.want, players.gotLimit)
		})
	}
}

func TestPlayersIndexDatabaseError(t *testing.T) {
	players := &fakePlayers{err: errors.New("connection refused")}
	s := newTestServer(players, &fakeQuests{}, nil)

	status, env := doGet(t, s, "/api/players")

	require.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}

func TestPlayerDetail(t *testing.T) {
	firstSeen := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lastSeen := time.Date(2024, 6, 2, 21, 30, 0, 0, time.UTC)

	prapor := statsRow(7, "Big Pipe", 3, 600, 12, 3)
	prapor.Player.FirstSeen = firstSeen
	prapor.Player.LastSeen = lastSeen

	done := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	players := &fakePlayers{byName: map[string]*models.PlayerStats{"Big Pipe": prapor}}
	quests := &fakeQuests{byPlayer: map[int64][]*models.QuestProgress{
		7: {
			{
				QuestID:  1,
				PlayerID: 7,
				Progress: 3,
				Quest:    &models.Quest{QuestKey: "kills_week", Title: "Week of Kills", Target: 5},
			},
			{
				QuestID:  2,
				PlayerID: 7,
				Progress: 9, // quest row missing, entry must be skipped
			},
			{
				QuestID:     3,
				PlayerID:    7,
				Progress:    5,
				CompletedAt: &done,
				Quest:       &models.Quest{QuestKey: "survive_week", Title: "Walk It Off", Target: 5},
			},
		},
	}}
	s := newTestServer(players, quests, nil)

	status, env := doGet(t, s, "/api/players/Big%20Pipe")

	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var data playerDetailResponse
	decodeData(t, env, &data)
	assert.Equal(t, "Big Pipe", data.Name)
	assert.Equal(t, 3, data.Level)
	assert.Equal(t, int64(600), data.XP)
	assert.InDelta(t, 4.0, data.KD, 0.001)
	assert.True(t, data.Eligible)
	assert.WithinDuration(t, firstSeen, data.FirstSeen, time.Second)
	assert.WithinDuration(t, lastSeen, data.LastSeen, time.Second)

	require.Len(t, data.Quests, 2)
	assert.Equal(t, "kills_week", data.Quests[0].Key)
	assert.Equal(t, 3, data.Quests[0].Progress)
	assert.Equal(t, 5, data.Quests[0].Target)
	assert.False(t, data.Quests[0].Completed)
	assert.Equal(t, "survive_week", data.Quests[1].Key)
	assert.True(t, data.Quests[1].Completed)
}

func TestPlayerDetailNotFound(t *testing.T) {
	s := newTestServer(&fakePlayers{}, &fakeQuests{}, nil)

	status, env := doGet(t, s, "/api/players/Ghost")

	require.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPlayerDetailServesWithoutQuestsOnLookupFailure(t *testing.T) {
	players := &fakePlayers{byName: map[string]*models.PlayerStats{
		"Prapor": statsRow(1, "Prapor", 2, 300, 3, 1),
	}}
	quests := &fakeQuests{byPlayerErr: errors.New("timeout")}
	s := newTestServer(players, quests, nil)

	status, env := doGet(t, s, "/api/players/Prapor")

	require.Equal(t, http.StatusOK, status)
	var data playerDetailResponse
	decodeData(t, env, &data)
	assert.Equal(t, "Prapor", data.Name)
	assert.Empty(t, data.Quests)
}

func TestQuestsIndex(t *testing.T) {
	starts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	done := starts.Add(36 * time.Hour)
	quests := &fakeQuests{
		active: []*models.Quest{{
			ID:          3,
			QuestKey:    "dogtags_week",
			Title:       "Collector",
			Description: "Loot dog tags.",
			EventType:   "DOGTAG",
			Target:      5,
			RewardXP:    250,
			StartsAt:    starts,
			EndsAt:      starts.Add(7 * 24 * time.Hour),
			Active:      true,
		}},
		byQuest: map[int64][]*models.QuestProgress{
			3: {
				{QuestID: 3, PlayerID: 1, Progress: 5, CompletedAt: &done, Player: &models.Player{ID: 1, GameName: "Prapor"}},
				{QuestID: 3, PlayerID: 2, Progress: 2}, // detached row without player, skipped
				{QuestID: 3, PlayerID: 4, Progress: 1, Player: &models.Player{ID: 4, GameName: "Therapist"}},
			},
		},
	}
	s := newTestServer(&fakePlayers{}, quests, nil)

	status, env := doGet(t, s, "/api/quests")

	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var data []questItem
	decodeData(t, env, &data)
	require.Len(t, data, 1)
	assert.Equal(t, "dogtags_week", data[0].Key)
	assert.Equal(t, "DOGTAG", data[0].EventType)
	assert.Equal(t, 5, data[0].Target)
	assert.Equal(t, int64(250), data[0].RewardXP)

	require.Len(t, data[0].Top, 2)
	assert.Equal(t, "Prapor", data[0].Top[0].Name)
	assert.True(t, data[0].Top[0].Completed)
	assert.Equal(t, "Therapist", data[0].Top[1].Name)
	assert.False(t, data[0].Top[1].Completed)
}

func TestQuestsIndexEmptyWindowIsAnArray(t *testing.T) {
	s := newTestServer(&fakePlayers{}, &fakeQuests{}, nil)

	status, env := doGet(t, s, "/api/quests")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", string(env.Data))
}

func TestLeaderboardAllTime(t *testing.T) {
	players := &fakePlayers{stats: []*models.PlayerStats{
		statsRow(1, "Prapor", 4, 1500, 10, 4),
		statsRow(2, "Headless_fika01", 9, 99999, 500, 0),
		statsRow(3, "Therapist", 2, 300, 1, 2),
	}}
	boards := services.NewLeaderboardService(players, &fakeEvents{}, &fakeLedger{}, nil)
	s := newTestServer(players, &fakeQuests{}, boards)

	status, env := doGet(t, s, "/api/leaderboard")

	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var data struct {
		Range   string                    `json:"range"`
		Players []services.LeaderboardRow `json:"players"`
	}
	decodeData(t, env, &data)
	assert.Equal(t, "all", data.Range)
	require.Len(t, data.Players, 2)
	assert.Equal(t, "Prapor", data.Players[0].Name)
	assert.Equal(t, "Therapist", data.Players[1].Name)
}

func TestLeaderboardWindow(t *testing.T) {
	events := &fakeEvents{counts: []repositories.TypeCount{
		{GameName: "Prapor", Type: "KILL", Count: 2},
		{GameName: "Prapor", Type: "DEATH", Count: 1},
		{GameName: "Prapor", Type: "SURVIVE", Count: 3},
	}}
	ledger := &fakeLedger{sums: []repositories.PlayerXPSum{
		{GameName: "Prapor", XP: 200},
	}}
	boards := services.NewLeaderboardService(&fakePlayers{}, events, ledger, nil)
	s := newTestServer(&fakePlayers{}, &fakeQuests{}, boards)

	status, env := doGet(t, s, "/api/leaderboard?window=24h")

	require.Equal(t, http.StatusOK, status)

	var data struct {
		Range   string                    `json:"range"`
		Players []services.LeaderboardRow `json:"players"`
	}
	decodeData(t, env, &data)
	assert.Equal(t, "24h", data.Range)
	require.Len(t, data.Players, 1)
	assert.Equal(t, services.LeaderboardRow{
		Name:   "Prapor",
		Raids:  4,
		Kills:  2,
		Deaths: 1,
		XP:     200,
	}, data.Players[0])
}

func TestLeaderboardRejectsUnknownWindow(t *testing.T) {
	boards := services.NewLeaderboardService(&fakePlayers{}, &fakeEvents{}, &fakeLedger{}, nil)
	s := newTestServer(&fakePlayers{}, &fakeQuests{}, boards)

	status, env := doGet(t, s, "/api/leaderboard?window=monthly")

	require.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	s := newTestServer(&fakePlayers{}, &fakeQuests{}, nil)

	status, env := doGet(t, s, "/api/nope")

	require.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
