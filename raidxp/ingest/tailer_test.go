package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTailer(t *testing.T, path string) chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string, 64)

	tailer := NewTailer(path, 10*time.Millisecond)
	go func() {
		_ = tailer.Run(ctx, out)
	}()
	t.Cleanup(cancel)

	// Give the tailer a moment to open and position itself at the end.
	time.Sleep(50 * time.Millisecond)
	return out
}

func appendLine(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func waitForLine(t *testing.T, out chan string) string {
	t.Helper()
	select {
	case line := <-out:
		return line
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func expectNoLine(t *testing.T, out chan string) {
	t.Helper()
	select {
	case line := <-out:
		t.Fatalf("unexpected line: %q", line)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTailer_StartsAtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, []byte("historical line\n"), 0o644))

	out := startTailer(t, path)

	appendLine(t, path, "fresh line\n")
	assert.Equal(t, "fresh line", waitForLine(t, out))
}

func TestTailer_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")

	out := startTailer(t, path)

	appendLine(t, path, "first ever line\n")
	assert.Equal(t, "first ever line", waitForLine(t, out))
}

func TestTailer_SplitsLinesAndStripsCR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out := startTailer(t, path)

	appendLine(t, path, "one\r\ntwo\n")
	assert.Equal(t, "one", waitForLine(t, out))
	assert.Equal(t, "two", waitForLine(t, out))
}

func TestTailer_HoldsPartialLineUntilNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out := startTailer(t, path)

	appendLine(t, path, "PlayerA killed ")
	expectNoLine(t, out)

	appendLine(t, path, "PlayerB\n")
	assert.Equal(t, "PlayerA killed PlayerB", waitForLine(t, out))
}

func TestTailer_TruncationResetsToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out := startTailer(t, path)

	appendLine(t, path, "before truncate\n")
	assert.Equal(t, "before truncate", waitForLine(t, out))

	require.NoError(t, os.Truncate(path, 0))
	// Let the tailer notice the shrink before new content lands.
	time.Sleep(100 * time.Millisecond)

	appendLine(t, path, "after truncate\n")
	assert.Equal(t, "after truncate", waitForLine(t, out))
}

func TestTailer_RotationReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out := startTailer(t, path)

	appendLine(t, path, "before rotate\n")
	assert.Equal(t, "before rotate", waitForLine(t, out))

	require.NoError(t, os.Rename(path, filepath.Join(dir, "raid.log.1")))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	// The tailer reopens at the new file's end on its own schedule, so keep
	// appending until a line makes it through.
	deadline := time.After(3 * time.Second)
	for {
		appendLine(t, path, "after rotate\n")
		select {
		case line := <-out:
			assert.Equal(t, "after rotate", line)
			return
		case <-deadline:
			t.Fatal("no line received after rotation")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestTailer_StopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string)
	done := make(chan error, 1)

	tailer := NewTailer(path, 10*time.Millisecond)
	go func() {
		done <- tailer.Run(ctx, out)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("tailer did not stop on cancel")
	}
}
