// Package fleet implements the in-memory seat allocation and fleet
// rebalancing engine.  A Ledger owns one bus's seats partitioned by
// travel date; the Manager owns the collection of ledgers, the booking
// registry and the expiry/autoscale policies; the merge coordinator
// (merge.go) consolidates underutilized ledgers.  Durable persistence
// and audit logging are collaborators reached through the interfaces in
// gateway.go.
package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/bus-fleet-reservation/internal/model"
)

// seatDate keys the per-claim bookkeeping maps.
type seatDate struct {
	seat int
	date string
}

// Ledger is the allocation authority for a single bus.  Seat maps are
// partitioned by travel date and materialized lazily: a date with no
// claims does not exist in the map and querying it yields "all seats
// free".  Every mutation is serialized by the ledger's own lock, so
// read-only status queries elsewhere in the system do not need to take
// the manager's coarse lock.
type Ledger struct {
	id       int
	capacity int

	mu          sync.RWMutex
	status      model.LedgerStatus
	seatsByDate map[string]map[int]string // date -> seat -> client
	reservedAt  map[seatDate]time.Time
	confirmed   map[seatDate]bool
}

// NewLedger creates an Active ledger with the given identity and fixed
// capacity.  IDs are assigned by the manager and never reused.
func NewLedger(id, capacity int) *Ledger {
	return &Ledger{
		id:          id,
		capacity:    capacity,
		status:      model.StatusActive,
		seatsByDate: make(map[string]map[int]string),
		reservedAt:  make(map[seatDate]time.Time),
		confirmed:   make(map[seatDate]bool),
	}
}

// ID returns the ledger's stable identity.
func (l *Ledger) ID() int { return l.id }

// Capacity returns the fixed seat count of the ledger.
func (l *Ledger) Capacity() int { return l.capacity }

// Status returns the current lifecycle state.
func (l *Ledger) Status() model.LedgerStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// setStatus transitions the ledger's lifecycle state.  Transitions are
// driven only by the manager and the merge coordinator under the coarse
// lock.
func (l *Ledger) setStatus(s model.LedgerStatus) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

// AvailableSeats returns the seat numbers 1..capacity that are free for
// the given date, in ascending order.
func (l *Ledger) AvailableSeats(date string) []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seats := l.seatsByDate[date]
	free := make([]int, 0, l.capacity)
	for n := 1; n <= l.capacity; n++ {
		if seats[n] == "" {
			free = append(free, n)
		}
	}
	return free
}

// SeatHolder returns the client currently holding the seat for the date,
// or "" when the seat is free or out of range.
func (l *Ledger) SeatHolder(seat int, date string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seatsByDate[date][seat]
}

// Claim atomically assigns the seat to the client for the date as a
// confirmed booking.  It returns false without error when the seat is
// out of range or already held: among N concurrent claims for the same
// (seat, date) exactly one succeeds.
func (l *Ledger) Claim(seat int, date, clientID string) bool {
	return l.claim(seat, date, clientID, true, time.Now().UTC())
}

// Hold is Claim for a provisional reservation: the seat is taken but
// confirmed stays false, which makes the claim eligible for the expiry
// sweep until it is confirmed or released.
func (l *Ledger) Hold(seat int, date, clientID string) bool {
	return l.claim(seat, date, clientID, false, time.Now().UTC())
}

// claim performs the actual seat assignment.  The reservation timestamp
// is supplied by the caller so a merge transfer can carry the original
// claim time over to the target ledger.
func (l *Ledger) claim(seat int, date, clientID string, conf bool, at time.Time) bool {
	if seat < 1 || seat > l.capacity || clientID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	seats := l.seatsByDate[date]
	if seats == nil {
		seats = make(map[int]string, l.capacity)
		l.seatsByDate[date] = seats
	}
	if seats[seat] != "" {
		return false
	}
	seats[seat] = clientID
	key := seatDate{seat, date}
	l.reservedAt[key] = at
	l.confirmed[key] = conf
	return true
}

// Release clears the seat and its bookkeeping for the date.  Releasing a
// seat that is already free (or out of range) is a no-op returning
// false, so the operation is idempotent.
func (l *Ledger) Release(seat int, date string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	seats := l.seatsByDate[date]
	if seats == nil || seats[seat] == "" {
		return false
	}
	delete(seats, seat)
	key := seatDate{seat, date}
	delete(l.reservedAt, key)
	delete(l.confirmed, key)
	return true
}

// Confirm flips a provisional hold into a confirmed claim, shielding it
// from the expiry sweep.  It returns false when the seat is not held by
// the given client.
func (l *Ledger) Confirm(seat int, date, clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seatsByDate[date][seat] != clientID {
		return false
	}
	l.confirmed[seatDate{seat, date}] = true
	return true
}

// setConfirmedFlag overwrites the confirmed marker for a live claim.
// Used to roll a confirmation back when its durable write fails.
func (l *Ledger) setConfirmedFlag(seat int, date string, v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seatsByDate[date][seat] != "" {
		l.confirmed[seatDate{seat, date}] = v
	}
}

// LoadFactor returns booked/capacity for the given date, in [0, 1].
func (l *Ledger) LoadFactor(date string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.capacity == 0 {
		return 0
	}
	return float64(len(l.seatsByDate[date])) / float64(l.capacity)
}

// OverallLoadFactor returns booked seat-dates over capacity times the
// number of distinct dates known to the ledger, or 0 when no dates have
// been recorded yet.
func (l *Ledger) OverallLoadFactor() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	booked, total := l.usageLocked()
	if total == 0 {
		return 0
	}
	return float64(booked) / float64(total)
}

// usageLocked returns (booked seat-dates, capacity x distinct dates).
// Callers must hold at least the read lock.
func (l *Ledger) usageLocked() (int, int) {
	booked := 0
	for _, seats := range l.seatsByDate {
		booked += len(seats)
	}
	return booked, l.capacity * len(l.seatsByDate)
}

// usage is the exported-for-manager variant of usageLocked, used when
// aggregating the fleet-wide load factor.
func (l *Ledger) usage() (booked, total int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.usageLocked()
}

// HeldSeat describes one live claim, used by the expiry sweep and the
// merge coordinator.
type HeldSeat struct {
	Seat       int
	Date       string
	ClientID   string
	ReservedAt time.Time
	Confirmed  bool
}

// heldSeats returns every live claim on the ledger, ordered by date and
// then seat number so sweeps and merges behave deterministically.
func (l *Ledger) heldSeats() []HeldSeat {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dates := make([]string, 0, len(l.seatsByDate))
	for d := range l.seatsByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	var held []HeldSeat
	for _, d := range dates {
		seats := l.seatsByDate[d]
		nums := make([]int, 0, len(seats))
		for n := range seats {
			nums = append(nums, n)
		}
		sort.Ints(nums)
		for _, n := range nums {
			key := seatDate{n, d}
			held = append(held, HeldSeat{
				Seat:       n,
				Date:       d,
				ClientID:   seats[n],
				ReservedAt: l.reservedAt[key],
				Confirmed:  l.confirmed[key],
			})
		}
	}
	return held
}

// datesInUse returns the distinct dates recorded on the ledger, sorted.
func (l *Ledger) datesInUse() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dates := make([]string, 0, len(l.seatsByDate))
	for d := range l.seatsByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// clearAll wipes every seat map and bookkeeping entry.  Called once a
// ledger has been marked Merged so it can never satisfy a future claim.
func (l *Ledger) clearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seatsByDate = make(map[string]map[int]string)
	l.reservedAt = make(map[seatDate]time.Time)
	l.confirmed = make(map[seatDate]bool)
}

// BusSnapshot is the read-only view of one ledger returned by fleet
// snapshot queries.
type BusSnapshot struct {
	BusID          int     `json:"bus_id"`
	Status         string  `json:"status"`
	Capacity       int     `json:"capacity"`
	AvailableSeats []int   `json:"available_seats"`
	LoadFactor     float64 `json:"load_factor"`
}

// Snapshot reports the ledger's state for the given date.
func (l *Ledger) Snapshot(date string) BusSnapshot {
	return BusSnapshot{
		BusID:          l.id,
		Status:         l.Status().String(),
		Capacity:       l.capacity,
		AvailableSeats: l.AvailableSeats(date),
		LoadFactor:     l.LoadFactor(date),
	}
}
