package observation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTakesPeriodicSnapshotsUntilStopped(t *testing.T) {
	cfg := testBusConfig()
	cfg.SnapshotInterval = 0 // Run() turns <=0 into 5s; the test overrides snapInterval after construction
	b := New(cfg, nil)
	b.snapInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, b.Stop(time.Second))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Stop")
	}

	assert.NotEmpty(t, b.Snapshots())
}

func TestStopIsIdempotent(t *testing.T) {
	b := New(testBusConfig(), nil)
	b.snapInterval = time.Hour
	go b.Run(context.Background())

	assert.NotPanics(t, func() {
		_ = b.Stop(100 * time.Millisecond)
		_ = b.Stop(100 * time.Millisecond)
	})
}
