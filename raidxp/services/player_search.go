package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fikanetics/raidxp/raidxp/database/repositories"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/semaphore"
)

const (
	nameCacheSize = 16
	nameCacheKey  = "players:names"
	nameCacheTTL  = time.Minute
)

type cachedNames struct {
	names     []string
	timestamp time.Time
}

// PlayerSearchService backs name autocomplete. The roster is small and at
// most a minute stale, which autocomplete can live with.
type PlayerSearchService struct {
	players repositories.PlayerRepository
	cache   *lru.Cache
	refresh *semaphore.Weighted
}

func NewPlayerSearchService(players repositories.PlayerRepository) *PlayerSearchService {
	cache, _ := lru.New(nameCacheSize)
	return &PlayerSearchService{
		players: players,
		cache:   cache,
		refresh: semaphore.NewWeighted(1),
	}
}

// Suggest returns up to limit player names matching the partial query,
// best match first.
func (s *PlayerSearchService) Suggest(ctx context.Context, query string, limit int) []string {
	names := s.names(ctx)
	if len(names) == 0 {
		return nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		if len(names) > limit {
			names = names[:limit]
		}
		return names
	}

	matches := fuzzy.Find(query, names)
	out := make([]string, 0, limit)
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (s *PlayerSearchService) names(ctx context.Context) []string {
	if cached, ok := s.cache.Get(nameCacheKey); ok {
		if c, ok := cached.(cachedNames); ok && time.Since(c.timestamp) < nameCacheTTL {
			return c.names
		}
	}

	// One refresh at a time; everyone else serves whatever is cached.
	if !s.refresh.TryAcquire(1) {
		return s.cachedOnly()
	}
	defer s.refresh.Release(1)

	names, err := s.players.AllNames(ctx)
	if err != nil {
		slog.Error("Failed to refresh player name cache",
			slog.String("type", "db"),
			slog.Any("error", err))
		return s.cachedOnly()
	}

	s.cache.Add(nameCacheKey, cachedNames{names: names, timestamp: time.Now()})
	return names
}

func (s *PlayerSearchService) cachedOnly() []string {
	if cached, ok := s.cache.Get(nameCacheKey); ok {
		if c, ok := cached.(cachedNames); ok {
			return c.names
		}
	}
	return nil
}
