package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Applier applies one extracted event as a single atomic unit of work.
type Applier interface {
	Apply(ctx context.Context, ev Event) error
}

// Worker is the single ingestion loop: it takes one line at a time from the
// tailer, extracts its events, and applies every event before moving to the
// next line. All state mutation is serialized through it. A store failure
// holds the worker on the same event until it applies or the context ends —
// transient failures are retried by reprocessing, never skipped.
type Worker struct {
	tailer  *Tailer
	parser  *Parser
	applier Applier
	retry   time.Duration
}

func NewWorker(tailer *Tailer, parser *Parser, applier Applier, retry time.Duration) *Worker {
	if retry <= 0 {
		retry = time.Second
	}
	return &Worker{
		tailer:  tailer,
		parser:  parser,
		applier: applier,
		retry:   retry,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	lines := make(chan string)
	tailDone := make(chan error, 1)
	go func() {
		tailDone <- w.tailer.Run(ctx, lines)
	}()

	slog.Info("Ingestion worker started", slog.String("type", "ingest"))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-tailDone:
			return err
		case line := <-lines:
			if err := w.processLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) processLine(ctx context.Context, line string) error {
	events := w.parser.Parse(line)
	if len(events) == 0 {
		slog.Debug("Line matched no rules", slog.String("type", "ingest"))
		return nil
	}

	for _, ev := range events {
		if err := w.applyWithRetry(ctx, ev); err != nil {
			return err
		}
		slog.Debug("Event applied",
			slog.String("type", "ingest"),
			slog.String("event", ev.Type),
			slog.String("actor", ev.Actor),
		)
	}
	return nil
}

// applyWithRetry keeps re-applying the same event until it sticks. Each
// application is all-or-nothing, so a retry never double-counts.
func (w *Worker) applyWithRetry(ctx context.Context, ev Event) error {
	for attempt := 1; ; attempt++ {
		err := w.applier.Apply(ctx, ev)
		if err == nil {
			if attempt > 1 {
				slog.Info("Event applied after retry",
					slog.String("type", "ingest"),
					slog.String("event", ev.Type),
					slog.Int("attempts", attempt),
				)
			}
			return nil
		}

		slog.Error("Event apply failed, holding position",
			slog.String("type", "ingest"),
			slog.String("event", ev.Type),
			slog.String("actor", ev.Actor),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retry):
		}
	}
}
