package raidxp

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log       LogConfig       `toml:"log"`
	Bot       BotConfig       `toml:"bot"`
	DB        DBConfig        `toml:"db"`
	Ingest    IngestConfig    `toml:"ingest"`
	Leveling  LevelingConfig  `toml:"leveling"`
	Quests    QuestsConfig    `toml:"quests"`
	Web       WebConfig       `toml:"web"`
	Snapshots SnapshotsConfig `toml:"snapshots"`
	Spaces    struct {
		Key    string `toml:"key"`
		Secret string `toml:"secret"`
		Region string `toml:"region"`
		Bucket string `toml:"bucket"`
		Root   string `toml:"root"`
	} `toml:"spaces"`
	Legacy LegacyConfig `toml:"legacy"`
}

// LegacyConfig points at the retired MongoDB bot for one-shot imports.
type LegacyConfig struct {
	MongoURI          string `toml:"mongo_uri"`
	MongoDatabase     string `toml:"mongo_database"`
	PlayersCollection string `toml:"players_collection"`
	StatsCollection   string `toml:"stats_collection"`
}

type BotConfig struct {
	DevGuilds          []snowflake.ID `toml:"dev_guilds"`
	Token              string         `toml:"token"`
	AdminRole          string         `toml:"admin_role"`
	LeaderboardChannel snowflake.ID   `toml:"leaderboard_channel"`
	LeaderboardMinutes int            `toml:"leaderboard_minutes"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type IngestConfig struct {
	LogFile     string `toml:"log_file"`
	RulesFile   string `toml:"rules_file"`
	PollMillis  int    `toml:"poll_millis"`
	RetryMillis int    `toml:"retry_millis"`
}

type LevelingConfig struct {
	// Awards overrides the built-in per-event XP table. Keys are event
	// type names, values are XP amounts.
	Awards map[string]int64 `toml:"awards"`
}

type QuestsConfig struct {
	RotateMinutes int         `toml:"rotate_minutes"`
	Seeds         []QuestSeed `toml:"seeds"`
}

type QuestSeed struct {
	Key         string `toml:"key"`
	Title       string `toml:"title"`
	Description string `toml:"description"`
	EventType   string `toml:"event_type"`
	Target      int    `toml:"target"`
	RewardXP    int64  `toml:"reward_xp"`
	Days        int    `toml:"days"`
}

type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type SnapshotsConfig struct {
	Enabled      bool     `toml:"enabled"`
	Dir          string   `toml:"dir"`
	EverySeconds int      `toml:"every_seconds"`
	Exclude      []string `toml:"exclude"`
	Upload       bool     `toml:"upload"`
}

func (c *Config) applyDefaults() {
	if c.Ingest.PollMillis <= 0 {
		c.Ingest.PollMillis = 250
	}
	if c.Ingest.RetryMillis <= 0 {
		c.Ingest.RetryMillis = 1000
	}
	if c.Bot.LeaderboardMinutes <= 0 {
		c.Bot.LeaderboardMinutes = 5
	}
	if c.Quests.RotateMinutes <= 0 {
		c.Quests.RotateMinutes = 60
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8090"
	}
	if c.Snapshots.EverySeconds <= 0 {
		c.Snapshots.EverySeconds = 60
	}
}
