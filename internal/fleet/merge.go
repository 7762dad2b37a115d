package fleet

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/bus-fleet-reservation/internal/model"
)

// MergeUnderutilized runs the administrative consolidation pass: when
// the overall load factor is below the low threshold, the emptier half
// of the Active ledgers is drained into the fuller half and retired.
// Each migrated hold keeps its seat number when the same seat is free
// on a keep-ledger (checked in ascending id order); otherwise it takes
// the lowest free seat on the lowest-id keep-ledger with room.
// Registry entries are rewritten in place, so cancellations keep
// resolving through the registry afterwards.  Holds that fit nowhere
// are logged and counted as orphans: a warning, not a failure of the
// pass.  The whole pass runs under the manager lock, so bookings and
// cancellations never observe a ledger mid-transfer.
func (m *Manager) MergeUnderutilized(ctx context.Context) MergeResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.overallLoadLocked() >= m.cfg.LowLoadThreshold {
		return MergeResult{Status: "failure", Reason: ReasonLoadTooHigh}
	}

	active := make([]*Ledger, 0, len(m.ledgers))
	for _, led := range m.ledgers {
		if led.Status() == model.StatusActive {
			active = append(active, led)
		}
	}
	// Emptiest first; ties broken by id so the pass is deterministic.
	sort.SliceStable(active, func(i, j int) bool {
		li, lj := active[i].OverallLoadFactor(), active[j].OverallLoadFactor()
		if li != lj {
			return li < lj
		}
		return active[i].ID() < active[j].ID()
	})
	toMerge := active[:len(active)/2]
	toKeep := active[len(active)/2:]

	// Placement scans keep-ledgers in ascending id order, matching the
	// booking scan.
	keepByID := make([]*Ledger, len(toKeep))
	copy(keepByID, toKeep)
	sort.Slice(keepByID, func(i, j int) bool { return keepByID[i].ID() < keepByID[j].ID() })

	for _, led := range toMerge {
		led.setStatus(model.StatusMerging)
	}

	mergedIDs := make([]int, 0, len(toMerge))
	orphaned := 0
	for _, src := range toMerge {
		for _, h := range src.heldSeats() {
			dst, seat := placeHold(keepByID, h)
			if dst == nil {
				orphaned++
				m.audit.Log(fmt.Sprintf("merge warning: no seat for client %s (bus %d seat %d date %s); hold left unmigrated", h.ClientID, src.ID(), h.Seat, h.Date))
				continue
			}
			m.retargetLocked(ctx, src, dst, h, seat)
			// The old entry goes away only after the new one is live.
			src.Release(h.Seat, h.Date)
		}
		src.setStatus(model.StatusMerged)
		src.clearAll()
		mergedIDs = append(mergedIDs, src.ID())
		m.audit.Log(fmt.Sprintf("bus %d merged and retired", src.ID()))
	}

	return MergeResult{OK: true, Status: "success", Merged: mergedIDs, Kept: len(toKeep), Orphaned: orphaned}
}

// placeHold claims a seat for the migrating hold on one of the
// keep-ledgers, preferring the same seat number, and returns the target
// ledger and seat.  The claim carries the original reservation time and
// confirmed flag so a provisional hold cannot dodge expiry by being
// merged.  A nil ledger means the hold fits nowhere.
func placeHold(keep []*Ledger, h HeldSeat) (*Ledger, int) {
	for _, dst := range keep {
		if h.Seat <= dst.Capacity() && dst.claim(h.Seat, h.Date, h.ClientID, h.Confirmed, h.ReservedAt) {
			return dst, h.Seat
		}
	}
	for _, dst := range keep {
		free := dst.AvailableSeats(h.Date)
		if len(free) == 0 {
			continue
		}
		if dst.claim(free[0], h.Date, h.ClientID, h.Confirmed, h.ReservedAt) {
			return dst, free[0]
		}
	}
	return nil, 0
}

// retargetLocked rewrites the registry entry (or hold token) that
// pointed at the source seat so it names the new location, and mirrors
// the move durably.  Durable errors degrade to audit warnings: the
// in-memory transfer already happened and the pass continues.
func (m *Manager) retargetLocked(ctx context.Context, src, dst *Ledger, h HeldSeat, newSeat int) {
	if h.Confirmed {
		for _, b := range m.bookings {
			if b.BusID == src.ID() && b.Seat == h.Seat && b.Date == h.Date {
				b.BusID = dst.ID()
				b.Seat = newSeat
				rec := *b
				err := m.store.WithAtomicTransaction(ctx, func(tx Tx) error {
					if err := tx.DeleteSeatAssignment(ctx, src.ID(), h.Seat, h.Date); err != nil {
						return err
					}
					if err := tx.SaveSeatAssignment(ctx, rec.BusID, rec.Seat, rec.ClientID, rec.Date); err != nil {
						return err
					}
					return tx.SaveBooking(ctx, rec)
				})
				if err != nil {
					m.audit.Log(fmt.Sprintf("merge warning: durable rewrite failed for booking %d: %v", rec.ID, err))
				}
				m.audit.Log(fmt.Sprintf("merge: booking %d moved bus %d seat %d -> bus %d seat %d", rec.ID, src.ID(), h.Seat, dst.ID(), newSeat))
				return
			}
		}
		return
	}
	for token, ref := range m.holds {
		if ref.busID == src.ID() && ref.seat == h.Seat && ref.date == h.Date {
			ref.busID = dst.ID()
			ref.seat = newSeat
			m.holds[token] = ref
			return
		}
	}
}
