package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// snapshotWindows are the boards published for the website.
var snapshotWindows = []struct {
	Range string
	Span  time.Duration // 0 means lifetime
}{
	{Range: "24h", Span: 24 * time.Hour},
	{Range: "7d", Span: 7 * 24 * time.Hour},
	{Range: "all", Span: 0},
}

type snapshotPayload struct {
	UpdatedAt string           `json:"updatedAt"`
	Range     string           `json:"range"`
	Players   []LeaderboardRow `json:"players"`
}

// SnapshotService renders the public leaderboard JSON files. Each file is
// written to a temp path and renamed so readers never see a partial board.
type SnapshotService struct {
	leaderboards *LeaderboardService
	spaces       *SpacesService // nil disables uploads
	dir          string
}

func NewSnapshotService(leaderboards *LeaderboardService, spaces *SpacesService, dir string) *SnapshotService {
	return &SnapshotService{
		leaderboards: leaderboards,
		spaces:       spaces,
		dir:          dir,
	}
}

// WriteAll renders every window once.
func (ss *SnapshotService) WriteAll(ctx context.Context) error {
	if err := os.MkdirAll(ss.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range snapshotWindows {
		w := w
		g.Go(func() error {
			return ss.writeWindow(ctx, w.Range, w.Span)
		})
	}
	return g.Wait()
}

func (ss *SnapshotService) writeWindow(ctx context.Context, rng string, span time.Duration) error {
	var rows []LeaderboardRow
	var err error
	if span == 0 {
		rows, err = ss.leaderboards.AllTime(ctx)
	} else {
		rows, err = ss.leaderboards.Window(ctx, span)
	}
	if err != nil {
		return fmt.Errorf("failed to build %s board: %w", rng, err)
	}
	if rows == nil {
		rows = []LeaderboardRow{}
	}

	payload := snapshotPayload{
		UpdatedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Range:     rng,
		Players:   rows,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s board: %w", rng, err)
	}

	name := "leaderboard-" + rng + ".json"
	if err := ss.writeFileAtomic(name, data); err != nil {
		return err
	}

	if ss.spaces != nil {
		// The local copy is already in place; a failed upload just means
		// the bucket lags one cycle.
		if err := ss.spaces.UploadJSON(ctx, name, data); err != nil {
			slog.Warn("Snapshot upload failed",
				slog.String("file", name),
				slog.Any("error", err))
		}
	}
	return nil
}

func (ss *SnapshotService) writeFileAtomic(name string, data []byte) error {
	path := filepath.Join(ss.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Run renders immediately and then on every tick until the context ends.
func (ss *SnapshotService) Run(ctx context.Context, every time.Duration) {
	if err := ss.WriteAll(ctx); err != nil {
		slog.Error("Snapshot cycle failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ss.WriteAll(ctx); err != nil {
				slog.Error("Snapshot cycle failed", slog.Any("error", err))
			}
		}
	}
}
