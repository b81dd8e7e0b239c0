package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSweepRoutine_DropsExpiredJobs(t *testing.T) {
	r := NewJobRegistry()
	require.NoError(t, r.Register("job-1", "sess-A"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.StartSweepRoutine(ctx, 10*time.Millisecond, time.Nanosecond)
	}()

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep routine did not stop")
	}
}

func TestStartSweepRoutine_DisabledReturnsImmediately(t *testing.T) {
	r := NewJobRegistry()
	require.NoError(t, r.Register("job-1", "sess-A"))

	r.StartSweepRoutine(context.Background(), 0, time.Hour)

	assert.Equal(t, 1, r.Len())
}
