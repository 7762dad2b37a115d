package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerSweepsExpiredHolds(t *testing.T) {
	m := newTestManager(Config{InitialBuses: 1, SeatsPerBus: 4, ReservationTimeout: 20 * time.Millisecond})

	hold, err := m.HoldSeat(BookRequest{ClientID: "alice", Date: testDate})
	require.NoError(t, err)
	require.True(t, hold.OK)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewScheduler(m, 10*time.Millisecond, NopAudit{}).Start(ctx)

	assert.Eventually(t, func() bool {
		snap, ok := m.BusStatus(0, testDate)
		return ok && len(snap.AvailableSeats) == 4
	}, time.Second, 10*time.Millisecond, "the scheduler must release the expired hold")
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	m := newTestManager(Config{InitialBuses: 1, SeatsPerBus: 4})
	s := NewScheduler(m, 5*time.Millisecond, NopAudit{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestSchedulerDefaultInterval(t *testing.T) {
	s := NewScheduler(newTestManager(Config{}), 0, NopAudit{})
	assert.Equal(t, 30*time.Second, s.interval)
}
