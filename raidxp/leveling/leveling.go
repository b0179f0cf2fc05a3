package leveling

import "strings"

// Config carries the per-event XP award table. The table is tuning data, not
// code: deployments override entries from config without rebuilding.
type Config struct {
	Awards map[string]int64
}

func NewDefaultConfig() *Config {
	return &Config{
		Awards: map[string]int64{
			"KILL":     100,
			"HEADSHOT": 25,
			"SURVIVE":  150,
			"EXTRACT":  75,
			"DOGTAG":   30,
			"DEATH":    0,
		},
	}
}

// NewConfig starts from the default table and applies overrides on top.
// Keys are case-insensitive.
func NewConfig(overrides map[string]int64) *Config {
	cfg := NewDefaultConfig()
	for k, v := range overrides {
		cfg.Awards[strings.ToUpper(k)] = v
	}
	return cfg
}

// Calculator resolves XP awards for events against a replaceable table.
type Calculator struct {
	config *Config
}

func NewCalculator(config *Config) *Calculator {
	if config == nil {
		config = NewDefaultConfig()
	}
	return &Calculator{config: config}
}

// AwardFor returns the XP an event type is worth. Unknown types award 0.
func (c *Calculator) AwardFor(eventType string) int64 {
	return c.config.Awards[strings.ToUpper(eventType)]
}

// XPForLevel is the level curve: the total XP required to hold a level.
// 0 for level 1 and below, then 100·(level−1)² + 100 — convex and strictly
// increasing, so levels get progressively more expensive.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return 100*n*n + 100
}

// LevelFromXP returns the largest level whose requirement is within xp.
// Inverse of XPForLevel on threshold values.
func LevelFromXP(xp int64) int {
	level := 1
	for xp >= XPForLevel(level+1) {
		level++
	}
	return level
}

// NextLevelXP is the total XP needed for the level after the given one.
func NextLevelXP(level int) int64 {
	return XPForLevel(level + 1)
}
