package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/bus-fleet-reservation/internal/model"
)

// Config carries the engine's allocation policy.  Zero values are
// replaced with the defaults the fleet has always run with.
type Config struct {
	InitialBuses       int           // ledgers created at startup
	MaxBuses           int           // hard cap on the ledger count
	SeatsPerBus        int           // capacity of every new ledger
	HighLoadThreshold  float64       // autoscale above this overall load
	LowLoadThreshold   float64       // merging allowed below this overall load
	ReservationTimeout time.Duration // unconfirmed holds older than this are swept
}

func (c Config) withDefaults() Config {
	if c.InitialBuses <= 0 {
		c.InitialBuses = 1
	}
	if c.MaxBuses <= 0 {
		c.MaxBuses = 100
	}
	if c.SeatsPerBus <= 0 {
		c.SeatsPerBus = 50
	}
	if c.HighLoadThreshold <= 0 {
		c.HighLoadThreshold = 0.8
	}
	if c.LowLoadThreshold <= 0 {
		c.LowLoadThreshold = 0.2
	}
	if c.ReservationTimeout <= 0 {
		c.ReservationTimeout = 5 * time.Minute
	}
	return c
}

// holdRef locates a provisional hold by its opaque token.
type holdRef struct {
	busID    int
	seat     int
	date     string
	clientID string
}

// Manager is the single entry point for booking, cancellation and fleet
// maintenance.  It owns the ordered ledger collection, the booking
// registry, the visitor set and the provisional hold index.
//
// Locking: every mutating sequence (book, cancel, hold, confirm, sweep,
// autoscale, merge) runs under the coarse mu end-to-end, which makes
// the engine logically single-writer.  Ledgers additionally serialize
// their own seat maps so read-only queries (snapshots, load factors)
// never need mu.
type Manager struct {
	cfg   Config
	store Gateway
	audit AuditLogger

	mu            sync.Mutex
	ledgers       []*Ledger // insertion order = ascending id
	nextBusID     int
	bookings      map[uint64]*model.Booking
	nextBookingID uint64
	visitors      map[string]struct{}
	holds         map[string]holdRef
}

// NewManager builds an engine with InitialBuses Active ledgers.  The
// gateway and audit sink must be non-nil; use NopGateway and NopAudit
// to run without persistence or a broker.
func NewManager(cfg Config, store Gateway, audit AuditLogger) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:      cfg,
		store:    store,
		audit:    audit,
		bookings: make(map[uint64]*model.Booking),
		visitors: make(map[string]struct{}),
		holds:    make(map[string]holdRef),
	}
	for i := 0; i < cfg.InitialBuses; i++ {
		m.ledgers = append(m.ledgers, NewLedger(m.nextBusID, cfg.SeatsPerBus))
		m.nextBusID++
	}
	return m
}

// BookRequest names the arguments of a booking attempt.  BusID and Seat
// are optional preferences; see Book for their exact semantics.
type BookRequest struct {
	ClientID string
	Date     string
	BusID    *int
	Seat     *int
}

func (r BookRequest) validate() error {
	if r.ClientID == "" {
		return ErrMissingClient
	}
	if r.Date == "" {
		return ErrMissingDate
	}
	if r.Seat != nil && *r.Seat < 1 {
		return ErrInvalidSeat
	}
	return nil
}

// Book claims a confirmed seat for the client on the given date.  The
// call records the visitor, sweeps expired holds and runs the autoscale
// check before allocation.  An explicit (bus, seat) preference is
// strict: if that exact seat is taken the call fails with no_capacity
// even when others are free.  A preferred bus without a seat takes the
// lowest free seat on that bus only.  Without preferences, ledgers are
// scanned in ascending id order and the lowest free seat wins.  The
// claim is written through the gateway inside an atomic transaction;
// when the durable write fails the in-memory claim is rolled back and
// the call reports persistence_failure.
func (m *Manager) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	if err := req.validate(); err != nil {
		return BookResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.visitors[req.ClientID] = struct{}{}
	m.sweepExpiredLocked(time.Now().UTC())
	m.autoscaleLocked()

	led, seat, reason := m.locateLocked(req)
	if led == nil {
		m.audit.Log(fmt.Sprintf("booking failed: client %s found no seat for %s (%s)", req.ClientID, req.Date, reason))
		return bookFailure(reason), nil
	}
	if !led.Claim(seat, req.Date, req.ClientID) {
		return bookFailure(ReasonNoCapacity), nil
	}

	id := m.nextBookingID + 1
	booking := model.Booking{
		ID:        id,
		ClientID:  req.ClientID,
		BusID:     led.ID(),
		Seat:      seat,
		Date:      req.Date,
		CreatedAt: time.Now().UTC(),
	}
	err := m.store.WithAtomicTransaction(ctx, func(tx Tx) error {
		if err := tx.SaveBooking(ctx, booking); err != nil {
			return err
		}
		return tx.SaveSeatAssignment(ctx, booking.BusID, booking.Seat, booking.ClientID, booking.Date)
	})
	if err != nil {
		// Memory and the durable store must never diverge: revert
		// the claim before reporting failure.
		led.Release(seat, req.Date)
		m.audit.Log(fmt.Sprintf("booking rolled back: durable write failed for client %s (bus %d seat %d): %v", req.ClientID, led.ID(), seat, err))
		return bookFailure(ReasonPersistenceFailure), nil
	}
	m.nextBookingID = id
	m.bookings[id] = &booking
	m.audit.Log(fmt.Sprintf("booking %d: client %s booked seat %d on bus %d for %s", id, req.ClientID, seat, led.ID(), req.Date))
	return bookSuccess(id, led.ID(), seat, req.Date), nil
}

// locateLocked resolves a booking request to a (ledger, seat) candidate
// following the scan order rules.  It returns a nil ledger and a reason
// code when no seat qualifies.
func (m *Manager) locateLocked(req BookRequest) (*Ledger, int, Reason) {
	if req.BusID != nil {
		led := m.ledgerByIDLocked(*req.BusID)
		if led == nil {
			return nil, 0, ReasonNotFound
		}
		if led.Status() == model.StatusActive {
			if req.Seat != nil {
				if *req.Seat <= led.Capacity() && led.SeatHolder(*req.Seat, req.Date) == "" {
					return led, *req.Seat, ReasonNone
				}
				return nil, 0, ReasonNoCapacity
			}
			if free := led.AvailableSeats(req.Date); len(free) > 0 {
				return led, free[0], ReasonNone
			}
			return nil, 0, ReasonNoCapacity
		}
		// A merging/merged preferred bus falls through to the scan.
	}
	for _, led := range m.ledgers {
		if led.Status() != model.StatusActive {
			continue
		}
		if free := led.AvailableSeats(req.Date); len(free) > 0 {
			return led, free[0], ReasonNone
		}
	}
	return nil, 0, ReasonNoCapacity
}

// Cancel removes a booking on behalf of its holder.  The registry entry
// is the source of truth for the seat's current location, so
// cancellation succeeds even when the original ledger has since been
// merged.  The ledger entry is cleared before the registry entry is
// removed; a failed durable delete re-claims the seat and reports
// persistence_failure.
func (m *Manager) Cancel(ctx context.Context, bookingID uint64, clientID string) (CancelResult, error) {
	if clientID == "" {
		return CancelResult{}, ErrMissingClient
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[bookingID]
	if !ok {
		return cancelFailure(ReasonNotFound), nil
	}
	if booking.ClientID != clientID {
		m.audit.Log(fmt.Sprintf("cancellation denied: booking %d does not belong to client %s", bookingID, clientID))
		return cancelFailure(ReasonUnauthorized), nil
	}

	led := m.ledgerByIDLocked(booking.BusID)
	released := false
	if led != nil {
		released = led.Release(booking.Seat, booking.Date)
	}
	err := m.store.WithAtomicTransaction(ctx, func(tx Tx) error {
		if err := tx.DeleteSeatAssignment(ctx, booking.BusID, booking.Seat, booking.Date); err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, bookingID)
	})
	if err != nil {
		if released {
			led.claim(booking.Seat, booking.Date, booking.ClientID, true, booking.CreatedAt)
		}
		m.audit.Log(fmt.Sprintf("cancellation rolled back: durable delete failed for booking %d: %v", bookingID, err))
		return cancelFailure(ReasonPersistenceFailure), nil
	}
	delete(m.bookings, bookingID)
	m.audit.Log(fmt.Sprintf("cancellation: booking %d cancelled by client %s", bookingID, clientID))
	return cancelSuccess(), nil
}

// HoldSeat places a provisional claim that expires after the
// reservation timeout unless confirmed.  Holds live only in memory and
// are identified by an opaque token; confirming one turns it into a
// registered, persisted booking.
func (m *Manager) HoldSeat(req BookRequest) (HoldResult, error) {
	if err := req.validate(); err != nil {
		return HoldResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.visitors[req.ClientID] = struct{}{}
	now := time.Now().UTC()
	m.sweepExpiredLocked(now)
	m.autoscaleLocked()

	led, seat, reason := m.locateLocked(req)
	if led == nil {
		return HoldResult{Status: "failure", Reason: reason}, nil
	}
	if !led.Hold(seat, req.Date, req.ClientID) {
		return HoldResult{Status: "failure", Reason: ReasonNoCapacity}, nil
	}
	token := uuid.NewString()
	m.holds[token] = holdRef{busID: led.ID(), seat: seat, date: req.Date, clientID: req.ClientID}
	m.audit.Log(fmt.Sprintf("hold %s: client %s holds seat %d on bus %d for %s", token, req.ClientID, seat, led.ID(), req.Date))
	return HoldResult{
		OK:        true,
		Status:    "success",
		HoldToken: token,
		BusID:     led.ID(),
		Seat:      seat,
		Date:      req.Date,
		ExpiresAt: now.Add(m.cfg.ReservationTimeout).Format(time.RFC3339),
	}, nil
}

// ConfirmHold converts a live provisional hold into a booking.  Unknown
// and expired tokens fail with not_found; a client mismatch fails with
// unauthorized.  The confirmation is persisted like a direct booking.
func (m *Manager) ConfirmHold(ctx context.Context, token, clientID string) (BookResult, error) {
	if clientID == "" {
		return BookResult{}, ErrMissingClient
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Expired holds must not be confirmable.
	m.sweepExpiredLocked(time.Now().UTC())

	ref, ok := m.holds[token]
	if !ok {
		return bookFailure(ReasonNotFound), nil
	}
	if ref.clientID != clientID {
		return bookFailure(ReasonUnauthorized), nil
	}
	led := m.ledgerByIDLocked(ref.busID)
	if led == nil || !led.Confirm(ref.seat, ref.date, clientID) {
		delete(m.holds, token)
		return bookFailure(ReasonNotFound), nil
	}

	id := m.nextBookingID + 1
	booking := model.Booking{
		ID:        id,
		ClientID:  clientID,
		BusID:     ref.busID,
		Seat:      ref.seat,
		Date:      ref.date,
		CreatedAt: time.Now().UTC(),
	}
	err := m.store.WithAtomicTransaction(ctx, func(tx Tx) error {
		if err := tx.SaveBooking(ctx, booking); err != nil {
			return err
		}
		return tx.SaveSeatAssignment(ctx, booking.BusID, booking.Seat, booking.ClientID, booking.Date)
	})
	if err != nil {
		led.setConfirmedFlag(ref.seat, ref.date, false)
		m.audit.Log(fmt.Sprintf("hold %s: confirmation rolled back, durable write failed: %v", token, err))
		return bookFailure(ReasonPersistenceFailure), nil
	}
	m.nextBookingID = id
	m.bookings[id] = &booking
	delete(m.holds, token)
	m.audit.Log(fmt.Sprintf("booking %d: client %s confirmed hold on seat %d bus %d for %s", id, clientID, ref.seat, ref.busID, ref.date))
	return bookSuccess(id, ref.busID, ref.seat, ref.date), nil
}

// ReleaseHold frees a provisional hold before it expires.
func (m *Manager) ReleaseHold(token, clientID string) (CancelResult, error) {
	if clientID == "" {
		return CancelResult{}, ErrMissingClient
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.holds[token]
	if !ok {
		return cancelFailure(ReasonNotFound), nil
	}
	if ref.clientID != clientID {
		return cancelFailure(ReasonUnauthorized), nil
	}
	if led := m.ledgerByIDLocked(ref.busID); led != nil {
		led.Release(ref.seat, ref.date)
	}
	delete(m.holds, token)
	m.audit.Log(fmt.Sprintf("hold %s released by client %s", token, clientID))
	return cancelSuccess(), nil
}

// Sweep releases every expired, unconfirmed hold on Active ledgers and
// returns the number of seats freed.  Confirmed bookings are never
// auto-expired.  The sweep is idempotent and safe to run on a schedule
// alongside bookings.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepExpiredLocked(time.Now().UTC())
}

func (m *Manager) sweepExpiredLocked(now time.Time) int {
	released := 0
	for _, led := range m.ledgers {
		if led.Status() != model.StatusActive {
			continue
		}
		for _, h := range led.heldSeats() {
			if h.Confirmed || now.Sub(h.ReservedAt) <= m.cfg.ReservationTimeout {
				continue
			}
			if led.Release(h.Seat, h.Date) {
				released++
				m.dropHoldTokenLocked(led.ID(), h.Seat, h.Date)
				m.audit.Log(fmt.Sprintf("released expired hold: bus %d seat %d date %s", led.ID(), h.Seat, h.Date))
			}
		}
	}
	return released
}

// dropHoldTokenLocked removes the token index entry pointing at the
// given seat, if any.
func (m *Manager) dropHoldTokenLocked(busID, seat int, date string) {
	for token, ref := range m.holds {
		if ref.busID == busID && ref.seat == seat && ref.date == date {
			delete(m.holds, token)
			return
		}
	}
}

// CheckAutoscale runs the growth policy outside of a booking call and
// returns the number of ledgers added.
func (m *Manager) CheckAutoscale() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoscaleLocked()
}

// autoscaleLocked appends up to two new ledgers when the overall load
// factor has reached the high threshold and the Active count is below
// the cap.  New ledgers get the next unused id.
func (m *Manager) autoscaleLocked() int {
	load := m.overallLoadLocked()
	active := m.activeCountLocked()
	if load < m.cfg.HighLoadThreshold || active >= m.cfg.MaxBuses {
		return 0
	}
	add := m.cfg.MaxBuses - active
	if add > 2 {
		add = 2
	}
	for i := 0; i < add; i++ {
		led := NewLedger(m.nextBusID, m.cfg.SeatsPerBus)
		m.nextBusID++
		m.ledgers = append(m.ledgers, led)
		m.audit.Log(fmt.Sprintf("added bus %d (load %.2f)", led.ID(), load))
	}
	return add
}

// overallLoadLocked is the canonical fleet-wide load factor: booked
// seat-dates over capacity times distinct dates in use, summed across
// Active ledgers.  A ledger with no recorded dates contributes zero to
// both sides, never an artificial date.
func (m *Manager) overallLoadLocked() float64 {
	booked, total := 0, 0
	for _, led := range m.ledgers {
		if led.Status() != model.StatusActive {
			continue
		}
		b, t := led.usage()
		booked += b
		total += t
	}
	if total == 0 {
		return 0
	}
	return float64(booked) / float64(total)
}

// OverallLoadFactor reports the canonical fleet-wide load factor.
func (m *Manager) OverallLoadFactor() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overallLoadLocked()
}

func (m *Manager) activeCountLocked() int {
	n := 0
	for _, led := range m.ledgers {
		if led.Status() == model.StatusActive {
			n++
		}
	}
	return n
}

func (m *Manager) ledgerByIDLocked(id int) *Ledger {
	for _, led := range m.ledgers {
		if led.ID() == id {
			return led
		}
	}
	return nil
}

// GetBooking returns the registry entry for the given id.
func (m *Manager) GetBooking(bookingID uint64) (model.Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return model.Booking{}, false
	}
	return *b, true
}

// ClientBookings lists all bookings held by the client, ordered by
// booking id.
func (m *Manager) ClientBookings(clientID string) []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range m.bookings {
		if b.ClientID == clientID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FleetSnapshot reports every ledger's state for the given date, in
// ascending id order.
func (m *Manager) FleetSnapshot(date string) []BusSnapshot {
	m.mu.Lock()
	ledgers := make([]*Ledger, len(m.ledgers))
	copy(ledgers, m.ledgers)
	m.mu.Unlock()

	out := make([]BusSnapshot, 0, len(ledgers))
	for _, led := range ledgers {
		out = append(out, led.Snapshot(date))
	}
	return out
}

// BusStatus reports one ledger's state for the given date.
func (m *Manager) BusStatus(busID int, date string) (BusSnapshot, bool) {
	m.mu.Lock()
	led := m.ledgerByIDLocked(busID)
	m.mu.Unlock()
	if led == nil {
		return BusSnapshot{}, false
	}
	return led.Snapshot(date), true
}

// AvailableDates lists the distinct travel dates recorded on a bus.
func (m *Manager) AvailableDates(busID int) ([]string, bool) {
	m.mu.Lock()
	led := m.ledgerByIDLocked(busID)
	m.mu.Unlock()
	if led == nil {
		return nil, false
	}
	return led.datesInUse(), true
}

// TotalVisitors returns the number of distinct client identities seen.
func (m *Manager) TotalVisitors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}

// OverviewReport aggregates fleet-wide counters for the admin surface.
func (m *Manager) OverviewReport() Overview {
	m.mu.Lock()
	defer m.mu.Unlock()
	ov := Overview{
		TotalBuses:    len(m.ledgers),
		TotalVisitors: len(m.visitors),
		TotalBookings: len(m.bookings),
	}
	booked, total := 0, 0
	for _, led := range m.ledgers {
		switch led.Status() {
		case model.StatusActive:
			ov.ActiveBuses++
			ov.TotalSeats += led.Capacity()
			b, t := led.usage()
			booked += b
			total += t
		case model.StatusMerged:
			ov.MergedBuses++
		}
	}
	ov.BookedSeats = booked
	if total > 0 {
		ov.LoadFactor = float64(booked) / float64(total)
	}
	return ov
}

// ForceRelease is the admin emergency path: it frees the seat and
// removes any matching booking or hold so the registry never references
// a freed seat.  It reports not_found when the seat was already free.
func (m *Manager) ForceRelease(ctx context.Context, busID, seat int, date string) (CancelResult, error) {
	if date == "" {
		return CancelResult{}, ErrMissingDate
	}
	if seat < 1 {
		return CancelResult{}, ErrInvalidSeat
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	led := m.ledgerByIDLocked(busID)
	if led == nil {
		return cancelFailure(ReasonNotFound), nil
	}
	if !led.Release(seat, date) {
		return cancelFailure(ReasonNotFound), nil
	}
	m.dropHoldTokenLocked(busID, seat, date)
	for id, b := range m.bookings {
		if b.BusID == busID && b.Seat == seat && b.Date == date {
			delete(m.bookings, id)
			err := m.store.WithAtomicTransaction(ctx, func(tx Tx) error {
				if err := tx.DeleteSeatAssignment(ctx, busID, seat, date); err != nil {
					return err
				}
				return tx.DeleteBooking(ctx, id)
			})
			if err != nil {
				m.audit.Log(fmt.Sprintf("force release: durable delete failed for booking %d: %v", id, err))
			}
			break
		}
	}
	m.audit.Log(fmt.Sprintf("admin force released bus %d seat %d date %s", busID, seat, date))
	return cancelSuccess(), nil
}

// Seed rebuilds the in-memory state from durable booking records at
// startup.  Ledgers are created as needed to cover the highest bus id
// seen, counters advance past the highest booking id, and every record
// is re-claimed as a confirmed seat.  Records whose seat can no longer
// be claimed (duplicate rows) are skipped with an audit line.
func (m *Manager) Seed(records []model.Booking) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	restored := 0
	for _, rec := range records {
		for m.nextBusID <= rec.BusID {
			m.ledgers = append(m.ledgers, NewLedger(m.nextBusID, m.cfg.SeatsPerBus))
			m.nextBusID++
		}
		led := m.ledgerByIDLocked(rec.BusID)
		if led == nil || !led.claim(rec.Seat, rec.Date, rec.ClientID, true, rec.CreatedAt) {
			m.audit.Log(fmt.Sprintf("seed: skipped booking %d (bus %d seat %d date %s)", rec.ID, rec.BusID, rec.Seat, rec.Date))
			continue
		}
		b := rec
		m.bookings[rec.ID] = &b
		m.visitors[rec.ClientID] = struct{}{}
		if rec.ID > m.nextBookingID {
			m.nextBookingID = rec.ID
		}
		restored++
	}
	if restored > 0 {
		m.audit.Log(fmt.Sprintf("seed: restored %d bookings from the durable mirror", restored))
	}
	return restored
}
