package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickScheduler time.Duration

func (s tickScheduler) Next(from time.Time) time.Time {
	return from.Add(time.Duration(s))
}

func TestRunScheduled(t *testing.T) {
	svc := newService(t, coordinator.Config{MinParticipants: 2})
	seed(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- coordinator.RunScheduled(ctx, svc, tickScheduler(5*time.Millisecond), logger)
	}()

	// Ticks with a single pending update are skipped.
	_, err := svc.Submit(context.Background(), "a", weights(1, 2))
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.CompletedRounds)
	assert.Equal(t, uint64(0), st.FailedRounds)

	_, err = svc.Submit(context.Background(), "b", weights(3, 4))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, err := svc.Status(context.Background())

		return err == nil && st.CompletedRounds == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []float64{2, 3}, currentWeights(t, svc)["w"].Values)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
