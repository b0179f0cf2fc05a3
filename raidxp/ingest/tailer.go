package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Tailer yields newly appended lines from a single growing log file. It
// starts at end-of-file (historical content is never replayed) and polls for
// complete newline-terminated lines, sleeping between polls when no data is
// available. Truncation or replacement of the file resets the cursor to the
// current end; neither is fatal.
type Tailer struct {
	path string
	poll time.Duration
}

func NewTailer(path string, poll time.Duration) *Tailer {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &Tailer{path: path, poll: poll}
}

// Run tails the file until ctx is cancelled, sending each complete line to
// out. Only the initial open can fail fast; everything after is recovered.
func (t *Tailer) Run(ctx context.Context, out chan<- string) error {
	file, offset, err := t.openAtEnd()
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	slog.Info("Tailing log file",
		slog.String("type", "ingest"),
		slog.String("path", t.path),
		slog.Int64("offset", offset),
	)

	buf := make([]byte, 32*1024)
	var pending []byte

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := file.Read(buf)
		if n > 0 {
			offset += int64(n)
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := strings.TrimRight(string(pending[:i]), "\r")
				pending = pending[i+1:]
				select {
				case out <- line:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		if readErr != nil && !errors.Is(readErr, io.EOF) {
			slog.Warn("Log read failed, reopening",
				slog.String("type", "ingest"),
				slog.Any("error", readErr),
			)
			file, offset, err = t.reopen(ctx, file)
			if err != nil {
				return err
			}
			pending = pending[:0]
			continue
		}

		// At EOF. Recover from truncation (file shrank below the cursor)
		// or rotation (path names a different file) before sleeping.
		if stat, statErr := file.Stat(); statErr == nil && stat.Size() < offset {
			slog.Warn("Log file truncated, resetting to end", slog.String("type", "ingest"))
			if offset, err = file.Seek(0, io.SeekEnd); err != nil {
				file, offset, err = t.reopen(ctx, file)
				if err != nil {
					return err
				}
			}
			pending = pending[:0]
			continue
		}

		if t.rotated(file) {
			slog.Warn("Log file rotated, reopening", slog.String("type", "ingest"))
			file, offset, err = t.reopen(ctx, file)
			if err != nil {
				return err
			}
			pending = pending[:0]
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.poll):
		}
	}
}

// openAtEnd opens (creating if absent) the log file and seeks to its end.
func (t *Tailer) openAtEnd() (*os.File, int64, error) {
	file, err := os.OpenFile(t.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("failed to seek log file: %w", err)
	}
	return file, offset, nil
}

// rotated reports whether the path now resolves to a different file than the
// one we hold open.
func (t *Tailer) rotated(file *os.File) bool {
	pathStat, err := os.Stat(t.path)
	if err != nil {
		return false
	}
	fileStat, err := file.Stat()
	if err != nil {
		return false
	}
	return !os.SameFile(pathStat, fileStat)
}

// reopen closes the stale handle and retries until the path opens again,
// positioned at end, or ctx is cancelled.
func (t *Tailer) reopen(ctx context.Context, stale *os.File) (*os.File, int64, error) {
	_ = stale.Close()
	for {
		file, offset, err := t.openAtEnd()
		if err == nil {
			return file, offset, nil
		}
		slog.Warn("Reopen failed, retrying",
			slog.String("type", "ingest"),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(t.poll):
		}
	}
}
