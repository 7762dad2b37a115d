package fleet

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-fleet-reservation/internal/model"
)

const testDate = "2026-09-01"

func TestLedgerClaimAndRelease(t *testing.T) {
	led := NewLedger(0, 4)

	assert.True(t, led.Claim(1, testDate, "alice"))
	assert.Equal(t, "alice", led.SeatHolder(1, testDate))

	// Same seat, same date: the second claim loses.
	assert.False(t, led.Claim(1, testDate, "bob"))
	assert.Equal(t, "alice", led.SeatHolder(1, testDate))

	// Same seat on another date is an independent claim.
	assert.True(t, led.Claim(1, "2026-09-02", "bob"))

	assert.True(t, led.Release(1, testDate))
	assert.False(t, led.Release(1, testDate), "releasing a free seat is a no-op")
	assert.Equal(t, "", led.SeatHolder(1, testDate))
	assert.Equal(t, "bob", led.SeatHolder(1, "2026-09-02"))
}

func TestLedgerClaimOutOfRange(t *testing.T) {
	led := NewLedger(0, 4)
	assert.False(t, led.Claim(0, testDate, "alice"))
	assert.False(t, led.Claim(5, testDate, "alice"))
	assert.False(t, led.Claim(2, testDate, ""))
}

func TestLedgerAvailableSeatsAscending(t *testing.T) {
	led := NewLedger(0, 5)
	require.True(t, led.Claim(2, testDate, "alice"))
	require.True(t, led.Claim(4, testDate, "bob"))

	assert.Equal(t, []int{1, 3, 5}, led.AvailableSeats(testDate))
	// An untouched date reports every seat free.
	assert.Equal(t, []int{1, 2, 3, 4, 5}, led.AvailableSeats("2026-12-24"))
}

func TestLedgerConcurrentClaimExactlyOneWinner(t *testing.T) {
	led := NewLedger(0, 10)

	const n = 64
	var wg sync.WaitGroup
	wins := make(chan string, n)
	for i := 0; i < n; i++ {
		client := string(rune('a' + i%26))
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if led.Claim(7, testDate, id) {
				wins <- id
			}
		}(client)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, winners[0], led.SeatHolder(7, testDate))
}

func TestLedgerLoadFactors(t *testing.T) {
	led := NewLedger(0, 4)
	assert.Zero(t, led.LoadFactor(testDate))
	assert.Zero(t, led.OverallLoadFactor(), "no recorded dates means zero load")

	require.True(t, led.Claim(1, testDate, "alice"))
	require.True(t, led.Claim(2, testDate, "bob"))
	assert.InDelta(t, 0.5, led.LoadFactor(testDate), 1e-9)

	// Second date: 2 of 4 on day one, 1 of 4 on day two -> 3/8 overall.
	require.True(t, led.Claim(1, "2026-09-02", "carol"))
	assert.InDelta(t, 3.0/8.0, led.OverallLoadFactor(), 1e-9)
}

func TestLedgerConfirmShieldsFromNothingButSelf(t *testing.T) {
	led := NewLedger(0, 4)
	require.True(t, led.Hold(3, testDate, "alice"))

	held := led.heldSeats()
	require.Len(t, held, 1)
	assert.False(t, held[0].Confirmed)

	assert.False(t, led.Confirm(3, testDate, "bob"), "only the holder may confirm")
	assert.True(t, led.Confirm(3, testDate, "alice"))

	held = led.heldSeats()
	require.Len(t, held, 1)
	assert.True(t, held[0].Confirmed)
}

func TestLedgerHeldSeatsDeterministicOrder(t *testing.T) {
	led := NewLedger(0, 10)
	require.True(t, led.Claim(9, "2026-09-02", "a"))
	require.True(t, led.Claim(4, testDate, "b"))
	require.True(t, led.Claim(2, testDate, "c"))

	held := led.heldSeats()
	require.Len(t, held, 3)
	assert.Equal(t, 2, held[0].Seat)
	assert.Equal(t, 4, held[1].Seat)
	assert.Equal(t, "2026-09-02", held[2].Date)
}

func TestLedgerClearAll(t *testing.T) {
	led := NewLedger(0, 4)
	require.True(t, led.Claim(1, testDate, "alice"))
	led.setStatus(model.StatusMerged)
	led.clearAll()

	assert.Empty(t, led.heldSeats())
	assert.Equal(t, "merged", led.Status().String())
	assert.Empty(t, led.datesInUse())
}

func TestLedgerSnapshot(t *testing.T) {
	led := NewLedger(3, 2)
	require.True(t, led.Claim(2, testDate, "alice"))

	snap := led.Snapshot(testDate)
	assert.Equal(t, 3, snap.BusID)
	assert.Equal(t, "active", snap.Status)
	assert.Equal(t, 2, snap.Capacity)
	assert.Equal(t, []int{1}, snap.AvailableSeats)
	assert.InDelta(t, 0.5, snap.LoadFactor, 1e-9)
}

func TestLedgerClaimPreservesSuppliedTimestamp(t *testing.T) {
	led := NewLedger(0, 4)
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.True(t, led.claim(1, testDate, "alice", false, at))

	held := led.heldSeats()
	require.Len(t, held, 1)
	assert.True(t, held[0].ReservedAt.Equal(at))
}
