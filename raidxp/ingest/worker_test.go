package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingApplier collects applied events and can be told to fail its first
// N calls to exercise the retry loop.
type recordingApplier struct {
	mu       sync.Mutex
	applied  []Event
	failures int
	calls    int
}

func (a *recordingApplier) Apply(_ context.Context, ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= a.failures {
		return errors.New("store unavailable")
	}
	a.applied = append(a.applied, ev)
	return nil
}

func (a *recordingApplier) snapshot() ([]Event, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Event(nil), a.applied...), a.calls
}

func startWorker(t *testing.T, path string, applier Applier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rules := compileTestRules(t, `
patterns:
  KILL: '(?P<killer>\S+) killed (?P<victim>\S+)'
`)
	worker := NewWorker(
		NewTailer(path, 10*time.Millisecond),
		NewParser(rules),
		applier,
		20*time.Millisecond,
	)
	go func() {
		_ = worker.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
}

func TestWorker_AppliesParsedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	applier := &recordingApplier{}
	startWorker(t, path, applier)

	appendLine(t, path, "PlayerA killed PlayerB\nnoise line\nPlayerC killed PlayerD\n")

	require.Eventually(t, func() bool {
		applied, _ := applier.snapshot()
		return len(applied) == 2
	}, 3*time.Second, 20*time.Millisecond)

	applied, _ := applier.snapshot()
	assert.Equal(t, "PlayerA", applied[0].Actor)
	assert.Equal(t, "PlayerC", applied[1].Actor)
}

func TestWorker_RetriesFailedApplyWithoutSkipping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	applier := &recordingApplier{failures: 2}
	startWorker(t, path, applier)

	appendLine(t, path, "PlayerA killed PlayerB\n")

	require.Eventually(t, func() bool {
		applied, _ := applier.snapshot()
		return len(applied) == 1
	}, 3*time.Second, 20*time.Millisecond)

	applied, calls := applier.snapshot()
	assert.Equal(t, 3, calls, "two failures then one success")
	assert.Equal(t, "KILL", applied[0].Type)
	assert.Equal(t, "PlayerA", applied[0].Actor)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	rules := compileTestRules(t, `
patterns:
  KILL: 'x killed y'
`)
	worker := NewWorker(NewTailer(path, 10*time.Millisecond), NewParser(rules), &recordingApplier{}, time.Second)

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
