package progression

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	"github.com/fikanetics/raidxp/raidxp/ingest"
	"github.com/fikanetics/raidxp/raidxp/leveling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// nopTxRunner satisfies txRunner without a database. Every "transaction"
// just runs the function; the fakes below mutate shared state directly.
type nopTxRunner struct{}

func (nopTxRunner) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(context.Context, bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

type progressKey struct {
	questID  int64
	playerID int64
}

// fakeStore is an in-memory stand-in for the Postgres state the engine
// mutates, shared by the four fake repositories.
type fakeStore struct {
	nextPlayerID int64
	players      map[string]*models.Player
	stats        map[int64]*models.PlayerStats
	events       []*models.RaidEvent
	ledger       []*models.XPLedgerEntry
	quests       []*models.Quest
	progress     map[progressKey]*models.QuestProgress
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:  make(map[string]*models.Player),
		stats:    make(map[int64]*models.PlayerStats),
		progress: make(map[progressKey]*models.QuestProgress),
	}
}

func (s *fakeStore) addPlayer(name string, eligible bool) *models.Player {
	s.nextPlayerID++
	p := &models.Player{ID: s.nextPlayerID, GameName: name, Eligible: eligible}
	s.players[name] = p
	s.stats[p.ID] = &models.PlayerStats{PlayerID: p.ID, Level: 1}
	return p
}

func (s *fakeStore) ledgerReasons() []string {
	reasons := make([]string, 0, len(s.ledger))
	for _, entry := range s.ledger {
		reasons = append(reasons, entry.Reason)
	}
	return reasons
}

type fakePlayers struct{ s *fakeStore }

func (f *fakePlayers) GetByName(_ context.Context, name string) (*models.Player, error) {
	if p, ok := f.s.players[name]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePlayers) GetStatsByName(_ context.Context, name string) (*models.PlayerStats, error) {
	if p, ok := f.s.players[name]; ok {
		return f.s.stats[p.ID], nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePlayers) TopByXP(context.Context, int) ([]*models.PlayerStats, error) {
	return nil, nil
}

func (f *fakePlayers) AllStats(context.Context) ([]*models.PlayerStats, error) {
	return nil, nil
}

func (f *fakePlayers) AllNames(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakePlayers) SetEligibility(_ context.Context, name string, eligible bool) (*models.Player, error) {
	p, ok := f.s.players[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	p.Eligible = eligible
	return p, nil
}

func (f *fakePlayers) UpsertByNameTx(_ context.Context, _ bun.Tx, name string, seenAt time.Time) (*models.Player, error) {
	if p, ok := f.s.players[name]; ok {
		p.LastSeen = seenAt
		return p, nil
	}
	f.s.nextPlayerID++
	p := &models.Player{ID: f.s.nextPlayerID, GameName: name, FirstSeen: seenAt, LastSeen: seenAt}
	f.s.players[name] = p
	return p, nil
}

func (f *fakePlayers) EnsureStatsTx(_ context.Context, _ bun.Tx, playerID int64) error {
	if _, ok := f.s.stats[playerID]; !ok {
		f.s.stats[playerID] = &models.PlayerStats{PlayerID: playerID, Level: 1}
	}
	return nil
}

func (f *fakePlayers) IncrementCounterTx(_ context.Context, _ bun.Tx, playerID int64, column string) error {
	st := f.s.stats[playerID]
	switch column {
	case "kills":
		st.Kills++
	case "deaths":
		st.Deaths++
	case "extracts":
		st.Extracts++
	case "survivals":
		st.Survivals++
	case "dogtags":
		st.Dogtags++
	default:
		return fmt.Errorf("unknown stat column: %s", column)
	}
	return nil
}

func (f *fakePlayers) AddXPTx(_ context.Context, _ bun.Tx, playerID int64, amount int64) (int64, int, error) {
	st := f.s.stats[playerID]
	st.XP += amount
	return st.XP, st.Level, nil
}

func (f *fakePlayers) UpdateLevelTx(_ context.Context, _ bun.Tx, playerID int64, level int) error {
	f.s.stats[playerID].Level = level
	return nil
}

type fakeEvents struct{ s *fakeStore }

func (f *fakeEvents) InsertTx(_ context.Context, _ bun.Tx, event *models.RaidEvent) error {
	f.s.events = append(f.s.events, event)
	return nil
}

func (f *fakeEvents) CountsBetween(context.Context, time.Time, time.Time) ([]repositories.TypeCount, error) {
	return nil, nil
}

func (f *fakeEvents) RecentByPlayer(context.Context, string, int) ([]*models.RaidEvent, error) {
	return nil, nil
}

type fakeQuests struct{ s *fakeStore }

func (f *fakeQuests) GetActive(context.Context) ([]*models.Quest, error) { return nil, nil }
func (f *fakeQuests) CountActive(context.Context) (int, error)           { return 0, nil }
func (f *fakeQuests) DeactivateExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeQuests) DeactivateAll(context.Context) (int64, error)          { return 0, nil }
func (f *fakeQuests) SeedFresh(context.Context, *models.Quest) error        { return nil }
func (f *fakeQuests) ProgressForQuest(context.Context, int64, int) ([]*models.QuestProgress, error) {
	return nil, nil
}
func (f *fakeQuests) ProgressForPlayer(context.Context, int64) ([]*models.QuestProgress, error) {
	return nil, nil
}

func (f *fakeQuests) GetActiveByEventTypeTx(_ context.Context, _ bun.Tx, eventType string) ([]*models.Quest, error) {
	var active []*models.Quest
	for _, q := range f.s.quests {
		if q.Active && q.EventType == eventType {
			active = append(active, q)
		}
	}
	return active, nil
}

func (f *fakeQuests) IncrementProgressTx(_ context.Context, _ bun.Tx, questID, playerID int64, now time.Time) error {
	key := progressKey{questID: questID, playerID: playerID}
	p, ok := f.s.progress[key]
	if !ok {
		p = &models.QuestProgress{QuestID: questID, PlayerID: playerID}
		f.s.progress[key] = p
	}
	p.Progress++
	p.UpdatedAt = now
	return nil
}

func (f *fakeQuests) CompleteDueTx(_ context.Context, _ bun.Tx, playerID int64, now time.Time) ([]repositories.CompletedQuest, error) {
	var completed []repositories.CompletedQuest
	for _, q := range f.s.quests {
		if !q.Active {
			continue
		}
		p, ok := f.s.progress[progressKey{questID: q.ID, playerID: playerID}]
		if !ok || p.CompletedAt != nil || p.Progress < q.Target {
			continue
		}
		at := now
		p.CompletedAt = &at
		completed = append(completed, repositories.CompletedQuest{
			QuestID:  q.ID,
			QuestKey: q.QuestKey,
			Title:    q.Title,
			RewardXP: q.RewardXP,
		})
	}
	return completed, nil
}

type fakeLedger struct{ s *fakeStore }

func (f *fakeLedger) InsertTx(_ context.Context, _ bun.Tx, entry *models.XPLedgerEntry) error {
	f.s.ledger = append(f.s.ledger, entry)
	return nil
}

func (f *fakeLedger) SumsBetween(context.Context, time.Time, time.Time) ([]repositories.PlayerXPSum, error) {
	return nil, nil
}

func (f *fakeLedger) RecentByPlayer(context.Context, int64, int) ([]*models.XPLedgerEntry, error) {
	return nil, nil
}

func newTestEngine(s *fakeStore) *Engine {
	return &Engine{
		db:      nopTxRunner{},
		players: &fakePlayers{s: s},
		events:  &fakeEvents{s: s},
		quests:  &fakeQuests{s: s},
		ledger:  &fakeLedger{s: s},
		calc:    leveling.NewCalculator(nil),
	}
}

func killEvent(actor, victim string) ingest.Event {
	return ingest.Event{
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Type:      "KILL",
		Actor:     actor,
		Attrs:     map[string]string{"victim": victim},
	}
}

func TestEngine_KillForEligiblePlayer(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), killEvent("Ragman", "Killa")))

	st := store.stats[player.ID]
	assert.Equal(t, int64(1), st.Kills)
	assert.Equal(t, int64(100), st.XP)

	require.Len(t, store.ledger, 1)
	assert.Equal(t, player.ID, store.ledger[0].PlayerID)
	assert.Equal(t, int64(100), store.ledger[0].Amount)
	assert.Equal(t, "event:KILL", store.ledger[0].Reason)

	require.Len(t, store.events, 1)
	assert.Equal(t, "KILL", store.events[0].Type)
	assert.Equal(t, "Ragman", store.events[0].GameName)
	assert.Equal(t, "Killa", store.events[0].Attrs["victim"])
}

func TestEngine_UnknownPlayerCreatedIneligible(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	ev := killEvent("FreshPMC", "Killa")
	require.NoError(t, engine.Apply(context.Background(), ev))

	player := store.players["FreshPMC"]
	require.NotNil(t, player)
	assert.False(t, player.Eligible)
	assert.Equal(t, ev.Timestamp, player.FirstSeen)
	assert.Equal(t, ev.Timestamp, player.LastSeen)

	// Counters move from day one; XP waits for the opt-in.
	st := store.stats[player.ID]
	assert.Equal(t, int64(1), st.Kills)
	assert.Zero(t, st.XP)
	assert.Empty(t, store.ledger)
}

func TestEngine_HeadshotHasNoCounter(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), ingest.Event{
		Timestamp: time.Now().UTC(),
		Type:      "HEADSHOT",
		Actor:     "Ragman",
		Attrs:     map[string]string{"victim": "Killa"},
	}))

	st := store.stats[player.ID]
	assert.Zero(t, st.Kills, "the kill that carried the headshot counts separately")
	assert.Equal(t, int64(25), st.XP)
	assert.Equal(t, []string{"event:HEADSHOT"}, store.ledgerReasons())
}

func TestEngine_DeathCountsButAwardsNothing(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), ingest.Event{
		Timestamp: time.Now().UTC(),
		Type:      "DEATH",
		Actor:     "Ragman",
		Attrs:     map[string]string{"killer": "Killa"},
	}))

	st := store.stats[player.ID]
	assert.Equal(t, int64(1), st.Deaths)
	assert.Zero(t, st.XP)
	assert.Empty(t, store.ledger)
}

func TestEngine_CounterPerEventType(t *testing.T) {
	tests := []struct {
		eventType string
		counter   func(*models.PlayerStats) int64
	}{
		{"KILL", func(s *models.PlayerStats) int64 { return s.Kills }},
		{"DEATH", func(s *models.PlayerStats) int64 { return s.Deaths }},
		{"EXTRACT", func(s *models.PlayerStats) int64 { return s.Extracts }},
		{"SURVIVE", func(s *models.PlayerStats) int64 { return s.Survivals }},
		{"DOGTAG", func(s *models.PlayerStats) int64 { return s.Dogtags }},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			store := newFakeStore()
			player := store.addPlayer("Ragman", false)
			engine := newTestEngine(store)

			require.NoError(t, engine.Apply(context.Background(), ingest.Event{
				Timestamp: time.Now().UTC(),
				Type:      tt.eventType,
				Actor:     "Ragman",
				Attrs:     map[string]string{},
			}))

			assert.Equal(t, int64(1), tt.counter(store.stats[player.ID]))
		})
	}
}

func TestEngine_LevelUpOnThreshold(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	store.stats[player.ID].XP = 150
	engine := newTestEngine(store)

	// 150 + 100 = 250, past the 200 XP needed for level 2.
	require.NoError(t, engine.Apply(context.Background(), killEvent("Ragman", "Killa")))

	st := store.stats[player.ID]
	assert.Equal(t, int64(250), st.XP)
	assert.Equal(t, 2, st.Level)
}

func TestEngine_LevelNeverLowered(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	store.stats[player.ID].XP = 150
	store.stats[player.ID].Level = 5
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), killEvent("Ragman", "Killa")))

	assert.Equal(t, 5, store.stats[player.ID].Level)
}

func TestEngine_QuestProgressAndCompletion(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	store.quests = []*models.Quest{{
		ID:        7,
		QuestKey:  "kills_week",
		Title:     "Drop 2 PMCs",
		EventType: "KILL",
		Target:    2,
		RewardXP:  50,
		Active:    true,
	}}
	engine := newTestEngine(store)
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, killEvent("Ragman", "Killa")))

	p := store.progress[progressKey{questID: 7, playerID: player.ID}]
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Progress)
	assert.False(t, p.Completed())

	require.NoError(t, engine.Apply(ctx, killEvent("Ragman", "Shturman")))

	assert.Equal(t, 2, p.Progress)
	require.True(t, p.Completed())
	completedAt := *p.CompletedAt

	assert.Equal(t, []string{"event:KILL", "event:KILL", "quest:kills_week"}, store.ledgerReasons())
	assert.Equal(t, int64(250), store.stats[player.ID].XP)

	// A third kill keeps counting but never re-fires the completion.
	require.NoError(t, engine.Apply(ctx, killEvent("Ragman", "Reshala")))

	assert.Equal(t, 3, p.Progress)
	assert.Equal(t, completedAt, *p.CompletedAt)
	assert.Equal(t, []string{"event:KILL", "event:KILL", "quest:kills_week", "event:KILL"}, store.ledgerReasons())
}

func TestEngine_QuestProgressForIneligiblePlayer(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", false)
	store.quests = []*models.Quest{{
		ID:        7,
		QuestKey:  "kills_week",
		EventType: "KILL",
		Target:    1,
		RewardXP:  50,
		Active:    true,
	}}
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), killEvent("Ragman", "Killa")))

	// Completion is recorded, the reward is withheld.
	p := store.progress[progressKey{questID: 7, playerID: player.ID}]
	require.True(t, p.Completed())
	assert.Zero(t, store.stats[player.ID].XP)
	assert.Empty(t, store.ledger)
}

func TestEngine_QuestIgnoresOtherEventTypes(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	store.quests = []*models.Quest{{
		ID:        7,
		QuestKey:  "dogtags_week",
		EventType: "DOGTAG",
		Target:    5,
		Active:    true,
	}}
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), killEvent("Ragman", "Killa")))

	assert.Nil(t, store.progress[progressKey{questID: 7, playerID: player.ID}])
}

func TestEngine_InactiveQuestUntouched(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	store.quests = []*models.Quest{{
		ID:        7,
		QuestKey:  "kills_week",
		EventType: "KILL",
		Target:    1,
		Active:    false,
	}}
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), killEvent("Ragman", "Killa")))

	assert.Nil(t, store.progress[progressKey{questID: 7, playerID: player.ID}])
}

func TestEngine_ZeroRewardQuestGrantsNothing(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", false)
	store.quests = []*models.Quest{{
		ID:        7,
		QuestKey:  "freebie",
		EventType: "DOGTAG",
		Target:    1,
		RewardXP:  0,
		Active:    true,
	}}
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), ingest.Event{
		Timestamp: time.Now().UTC(),
		Type:      "DOGTAG",
		Actor:     "Ragman",
		Attrs:     map[string]string{},
	}))

	p := store.progress[progressKey{questID: 7, playerID: player.ID}]
	require.True(t, p.Completed())
	assert.Empty(t, store.ledger)
}

func TestEngine_CustomEventTypeOnlyRecorded(t *testing.T) {
	store := newFakeStore()
	player := store.addPlayer("Ragman", true)
	engine := newTestEngine(store)

	require.NoError(t, engine.Apply(context.Background(), ingest.Event{
		Timestamp: time.Now().UTC(),
		Type:      "LOOT",
		Actor:     "Ragman",
		Attrs:     map[string]string{"item": "bitcoin"},
	}))

	require.Len(t, store.events, 1)
	assert.Equal(t, "LOOT", store.events[0].Type)

	st := store.stats[player.ID]
	assert.Zero(t, st.Kills+st.Deaths+st.Extracts+st.Survivals+st.Dogtags)
	assert.Zero(t, st.XP)
}
