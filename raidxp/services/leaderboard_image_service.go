package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/fikanetics/raidxp/raidxp/database/models"
)

// LeaderboardImageService renders the XP standings as a PNG for the pinned
// Discord leaderboard message.
type LeaderboardImageService struct {
	logger *slog.Logger
}

type leaderboardImageData struct {
	Title     string
	Timestamp string
	Rows      []leaderboardImageRow
}

type leaderboardImageRow struct {
	Rank   int
	Name   string
	Level  int
	XP     int64
	Kills  int64
	Deaths int64
	KD     string
}

func NewLeaderboardImageService() *LeaderboardImageService {
	service := &LeaderboardImageService{
		logger: slog.With(slog.String("service", "leaderboard_image")),
	}

	service.testChromedpAvailability()

	return service
}

func (s *LeaderboardImageService) testChromedpAvailability() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chromedpCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	err := chromedp.Run(chromedpCtx, chromedp.Navigate("data:text/html,<html><body>test</body></html>"))
	if err != nil {
		s.logger.Error("chromedp not available - image generation will fail",
			slog.String("error", err.Error()))
	} else {
		s.logger.Info("chromedp is available and working")
	}
}

// GenerateTopImage renders the given standings, best first, into a PNG.
func (s *LeaderboardImageService) GenerateTopImage(ctx context.Context, stats []*models.PlayerStats) ([]byte, error) {
	start := time.Now()

	if len(stats) == 0 {
		return nil, fmt.Errorf("no leaderboard entries provided")
	}
	if len(stats) > 10 {
		stats = stats[:10]
	}

	rows := make([]leaderboardImageRow, 0, len(stats))
	for i, st := range stats {
		name := "unknown"
		if st.Player != nil {
			name = st.Player.GameName
		}
		rows = append(rows, leaderboardImageRow{
			Rank:   i + 1,
			Name:   name,
			Level:  st.Level,
			XP:     st.XP,
			Kills:  st.Kills,
			Deaths: st.Deaths,
			KD:     fmt.Sprintf("%.2f", st.KDRatio()),
		})
	}

	data := leaderboardImageData{
		Title:     "Raid Leaderboard",
		Timestamp: time.Now().Format("15:04 MST"),
		Rows:      rows,
	}

	htmlContent, err := s.generateHTML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HTML: %w", err)
	}

	chromedpCtx, cancel := chromedp.NewContext(ctx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, 15*time.Second)
	defer cancel()

	var imageBytes []byte
	err = chromedp.Run(chromedpCtx,
		chromedp.Navigate("data:text/html,"+htmlContent),
		chromedp.WaitVisible("#leaderboard-container", chromedp.ByID),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Screenshot("#leaderboard-container", &imageBytes, chromedp.ByID),
	)
	if err != nil {
		s.logger.Error("Failed to generate image with chromedp",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	s.logger.Info("Leaderboard image generated",
		slog.Int("rows", len(rows)),
		slog.Int("image_size", len(imageBytes)),
		slog.Duration("elapsed", time.Since(start)))

	return imageBytes, nil
}

func (s *LeaderboardImageService) generateHTML(data leaderboardImageData) (string, error) {
	templatePath := filepath.Join("raidxp", "templates", "leaderboard.html")

	templateContent, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}

	tmpl, err := template.New("leaderboard").Parse(string(templateContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	// data: URLs treat # as a fragment marker and newlines poorly.
	htmlContent := strings.ReplaceAll(buf.String(), "#", "%23")
	htmlContent = strings.ReplaceAll(htmlContent, "\n", "")

	return htmlContent, nil
}
