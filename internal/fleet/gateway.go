package fleet

import (
	"context"

	"github.com/iliyamo/bus-fleet-reservation/internal/model"
)

// Gateway is the durable mirror of bookings and seat assignments.  The
// engine is the in-memory authority; every confirmed claim is written
// through the gateway before it is registered, and a write failure rolls
// the in-memory claim back so memory and the durable store never
// diverge.  Implementations must provide their own synchronization.
type Gateway interface {
	// WithAtomicTransaction runs fn inside a transaction scope with
	// guaranteed commit-or-rollback on all exit paths, including
	// panics.  The Tx passed to fn is only valid for its duration.
	WithAtomicTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of durable writes available inside an atomic
// transaction scope.
type Tx interface {
	SaveBooking(ctx context.Context, b model.Booking) error
	DeleteBooking(ctx context.Context, bookingID uint64) error
	SaveSeatAssignment(ctx context.Context, busID, seat int, clientID, date string) error
	DeleteSeatAssignment(ctx context.Context, busID, seat int, date string) error
}

// AuditLogger receives human-readable event lines.  Calls are
// fire-and-forget: implementations must never block or fail the caller.
type AuditLogger interface {
	Log(message string)
}

// NopAudit discards every message.  Useful in tests and when no broker
// is configured.
type NopAudit struct{}

// Log implements AuditLogger.
func (NopAudit) Log(string) {}

// NopGateway accepts every write and persists nothing.  It backs the
// engine when it runs without a database (tests, demos).
type NopGateway struct{}

// WithAtomicTransaction implements Gateway.
func (NopGateway) WithAtomicTransaction(_ context.Context, fn func(tx Tx) error) error {
	return fn(nopTx{})
}

type nopTx struct{}

func (nopTx) SaveBooking(context.Context, model.Booking) error { return nil }
func (nopTx) DeleteBooking(context.Context, uint64) error      { return nil }
func (nopTx) SaveSeatAssignment(context.Context, int, int, string, string) error {
	return nil
}
func (nopTx) DeleteSeatAssignment(context.Context, int, int, string) error { return nil }
