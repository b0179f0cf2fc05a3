package config

import "time"

// Application-wide constants organized by domain

// UI and Display Constants
const (
	// Pagination
	LeaderboardPageSize = 10
	QuestBoardTopSize   = 10
	AutocompleteLimit   = 25

	// Colors
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	WarningColor = 0xFFAA00

	// Discord UI Colors
	EmbedDefaultColor = 0x2B2D31
	XPAccentColor     = 0xD4A95E

	// Embed titles
	LeaderboardTitle = "FIKA — XP Leaderboard (Top 10)"
)

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout     = 30 * time.Second
	CommandExecutionTimeout = 15 * time.Second
	SnapshotWriteTimeout    = 30 * time.Second
	NetworkDialTimeout      = 5 * time.Second
	NetworkKeepAlive        = 30 * time.Second
	ShutdownTimeout         = 10 * time.Second

	// Ingest settings
	DefaultTailPoll   = 250 * time.Millisecond
	DefaultApplyRetry = time.Second

	// Background cycles
	DefaultLeaderboardRefresh = 5 * time.Minute
	DefaultQuestRotation      = time.Hour
	DefaultSnapshotCycle      = time.Minute
)
