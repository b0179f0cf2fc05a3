package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fikanetics/raidxp/raidxp/database/models"
	"github.com/fikanetics/raidxp/raidxp/leveling"
)

const legacyLedgerReason = "migration:legacy"

// Migrator imports player data from the legacy MongoDB bot into Postgres.
// Run it against a fresh database: the ledger backfill assumes stats.xp is
// entirely legacy XP. Every insert is conflict-guarded, so reruns are no-ops.
type Migrator struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	batchSize int
	collNames map[string]string
	stats     MigrationStats
}

// MigrationStats tracks migration progress and issues
type MigrationStats struct {
	Tables         map[string]*TableStats
	StartTime      time.Time
	EndTime        time.Time
	TotalProcessed int
	TotalSkipped   int
	TotalErrors    int
}

// TableStats tracks stats for individual tables
type TableStats struct {
	TableName  string
	Processed  int
	Successful int
	Skipped    int
	Errors     int
}

// MongoPlayer is a player document from the legacy bot.
type MongoPlayer struct {
	Name      string    `bson:"name"`
	FirstSeen time.Time `bson:"first_seen"`
	LastSeen  time.Time `bson:"last_seen"`
	Ignored   bool      `bson:"ignored"`
}

// MongoStats is a stats document from the legacy bot.
type MongoStats struct {
	Name     string `bson:"name"`
	Kills    int64  `bson:"kills"`
	Deaths   int64  `bson:"deaths"`
	Extracts int64  `bson:"extracts"`
	Survives int64  `bson:"survives"`
	Dogtags  int64  `bson:"dogtags"`
	XP       int64  `bson:"xp"`
}

func NewMigrator(pgDB *bun.DB) *Migrator {
	return &Migrator{
		pgDB:      pgDB,
		batchSize: 1000,
		collNames: map[string]string{
			"players": "players",
			"stats":   "stats",
		},
		stats: MigrationStats{
			Tables:    make(map[string]*TableStats),
			StartTime: time.Now(),
		},
	}
}

// UseMongo points the migrator at a live MongoDB database.
func (m *Migrator) UseMongo(client *mongo.Client, dbName string) {
	m.mongoDB = client.Database(dbName)
}

// SetMongoCollectionName overrides a source collection name ("players", "stats").
func (m *Migrator) SetMongoCollectionName(kind, name string) {
	if name != "" {
		m.collNames[kind] = name
	}
}

// SetBatchSize overrides the default batch size for inserts (useful for poolers/timeouts)
func (m *Migrator) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

func (m *Migrator) getColl(kind, defaultName string) *mongo.Collection {
	name := m.collNames[kind]
	if name == "" {
		name = defaultName
	}
	return m.mongoDB.Collection(name)
}

// MigrateAllFromMongo migrates data directly from a live MongoDB database
func (m *Migrator) MigrateAllFromMongo(ctx context.Context) error {
	if m.mongoDB == nil {
		return fmt.Errorf("mongoDB not configured; call UseMongo first")
	}

	logProgress("Starting direct MongoDB migration")

	if m.stats.Tables == nil {
		m.stats.Tables = make(map[string]*TableStats)
	}
	m.stats.StartTime = time.Now()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"players_mongo", m.MigratePlayersFromMongo},
		{"stats_mongo", m.MigrateStatsFromMongo},
		{"ledger_backfill", m.BackfillLedger},
	}

	for _, s := range steps {
		logProgress(fmt.Sprintf("Starting migration step: %s", s.name))
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("migration failed at step %s: %w", s.name, err)
		}
		logProgress(fmt.Sprintf("Completed migration step: %s", s.name))
	}

	m.stats.EndTime = time.Now()
	logProgress("Migration completed successfully!")
	m.logFinalStats()
	return nil
}

// MigratePlayersFromMongo imports the players collection.
func (m *Migrator) MigratePlayersFromMongo(ctx context.Context) error {
	m.initTableStats("players")

	col := m.getColl("players", "players")
	cur, err := col.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query players: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.Player
	for cur.Next(ctx) {
		var mp MongoPlayer
		if err := cur.Decode(&mp); err != nil {
			m.recordError("players", err.Error())
			continue
		}
		m.recordProcessed("players")

		if mp.Name == "" {
			m.recordSkipped("players")
			continue
		}

		batch = append(batch, m.convertPlayer(mp))
		if len(batch) >= m.batchSize {
			if err := m.batchInsertPlayers(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := m.batchInsertPlayers(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// MigrateStatsFromMongo imports the stats collection. Levels are recomputed
// from XP against the current curve instead of trusting the legacy values.
func (m *Migrator) MigrateStatsFromMongo(ctx context.Context) error {
	m.initTableStats("player_stats")

	idsByName, err := m.playerIDsByName(ctx)
	if err != nil {
		return err
	}

	col := m.getColl("stats", "stats")
	cur, err := col.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.PlayerStats
	for cur.Next(ctx) {
		var ms MongoStats
		if err := cur.Decode(&ms); err != nil {
			m.recordError("player_stats", err.Error())
			continue
		}
		m.recordProcessed("player_stats")

		playerID, ok := idsByName[ms.Name]
		if !ok {
			m.recordSkipped("player_stats")
			slog.Warn("Stats document has no matching player, skipping",
				slog.String("type", "db"),
				slog.String("game_name", ms.Name))
			continue
		}

		batch = append(batch, &models.PlayerStats{
			PlayerID:  playerID,
			Kills:     ms.Kills,
			Deaths:    ms.Deaths,
			Extracts:  ms.Extracts,
			Survivals: ms.Survives,
			Dogtags:   ms.Dogtags,
			XP:        ms.XP,
			Level:     leveling.LevelFromXP(ms.XP),
		})
		if len(batch) >= m.batchSize {
			if err := m.batchInsertStats(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := m.batchInsertStats(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// BackfillLedger writes one audit entry per imported player so the XP total
// stays accounted for. Players that already have a legacy entry are left
// alone, which is what makes the whole import rerunnable.
func (m *Migrator) BackfillLedger(ctx context.Context) error {
	res, err := m.pgDB.NewRaw(`
		INSERT INTO xp_ledger (player_id, amount, reason, created_at)
		SELECT ps.player_id, ps.xp, ?, now()
		FROM player_stats ps
		WHERE ps.xp > 0
		  AND NOT EXISTS (
			SELECT 1 FROM xp_ledger xl
			WHERE xl.player_id = ps.player_id AND xl.reason = ?
		  )`, legacyLedgerReason, legacyLedgerReason).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger backfill failed: %w", err)
	}

	if rows, err := res.RowsAffected(); err == nil {
		logProgress(fmt.Sprintf("Backfilled %d ledger entries", rows))
	}
	return nil
}

func (m *Migrator) convertPlayer(mp MongoPlayer) *models.Player {
	now := time.Now().UTC()
	firstSeen := mp.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = now
	}
	lastSeen := mp.LastSeen
	if lastSeen.IsZero() {
		lastSeen = firstSeen
	}
	return &models.Player{
		GameName:  mp.Name,
		Eligible:  !mp.Ignored,
		FirstSeen: firstSeen,
		LastSeen:  lastSeen,
	}
}

func (m *Migrator) playerIDsByName(ctx context.Context) (map[string]int64, error) {
	var players []*models.Player
	if err := m.pgDB.NewSelect().
		Model(&players).
		Column("id", "game_name").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load player ids: %w", err)
	}

	ids := make(map[string]int64, len(players))
	for _, p := range players {
		ids[p.GameName] = p.ID
	}
	return ids, nil
}

func (m *Migrator) batchInsertPlayers(ctx context.Context, players []*models.Player) error {
	startTime := time.Now()
	slog.Info("Starting batch insert of players", "count", len(players))

	res, err := m.pgDB.NewInsert().
		Model(&players).
		On("CONFLICT (game_name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		slog.Error("Batch insert of players failed",
			"error", err,
			"duration", time.Since(startTime))
		return fmt.Errorf("batch insert failed: %w", err)
	}

	if rows, err := res.RowsAffected(); err == nil {
		for i := int64(0); i < rows; i++ {
			m.recordSuccessful("players")
		}
	}

	slog.Info("Batch insert of players completed",
		"count", len(players),
		"duration", time.Since(startTime))
	return nil
}

func (m *Migrator) batchInsertStats(ctx context.Context, stats []*models.PlayerStats) error {
	startTime := time.Now()
	slog.Info("Starting batch insert of player stats", "count", len(stats))

	res, err := m.pgDB.NewInsert().
		Model(&stats).
		On("CONFLICT (player_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		slog.Error("Batch insert of player stats failed",
			"error", err,
			"duration", time.Since(startTime))
		return fmt.Errorf("batch insert failed: %w", err)
	}

	if rows, err := res.RowsAffected(); err == nil {
		for i := int64(0); i < rows; i++ {
			m.recordSuccessful("player_stats")
		}
	}

	slog.Info("Batch insert of player stats completed",
		"count", len(stats),
		"duration", time.Since(startTime))
	return nil
}

// logProgress logs progress messages following existing pattern
func logProgress(message string) {
	slog.Info(message, "service", "RaidXP Migration")
}

// Helper methods for statistics tracking

func (m *Migrator) initTableStats(tableName string) {
	if m.stats.Tables == nil {
		m.stats.Tables = make(map[string]*TableStats)
	}
	m.stats.Tables[tableName] = &TableStats{TableName: tableName}
}

func (m *Migrator) recordProcessed(tableName string) {
	if stats, exists := m.stats.Tables[tableName]; exists {
		stats.Processed++
		m.stats.TotalProcessed++
	}
}

func (m *Migrator) recordSuccessful(tableName string) {
	if stats, exists := m.stats.Tables[tableName]; exists {
		stats.Successful++
	}
}

func (m *Migrator) recordSkipped(tableName string) {
	if stats, exists := m.stats.Tables[tableName]; exists {
		stats.Skipped++
		m.stats.TotalSkipped++
	}
}

func (m *Migrator) recordError(tableName, errorMsg string) {
	if stats, exists := m.stats.Tables[tableName]; exists {
		stats.Errors++
		m.stats.TotalErrors++
		slog.Error("Migration record failed",
			"table", tableName,
			"error", errorMsg)
	}
}

func (m *Migrator) logFinalStats() {
	slog.Info("Migration statistics",
		"duration", m.stats.EndTime.Sub(m.stats.StartTime),
		"total_processed", m.stats.TotalProcessed,
		"total_skipped", m.stats.TotalSkipped,
		"total_errors", m.stats.TotalErrors)

	for tableName, stats := range m.stats.Tables {
		slog.Info("Table migration stats",
			"table", tableName,
			"processed", stats.Processed,
			"successful", stats.Successful,
			"skipped", stats.Skipped,
			"errors", stats.Errors)
	}
}
