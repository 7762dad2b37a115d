// Package repository implements the durable mirror of the booking
// engine on MySQL.  The engine remains the in-memory authority; the
// store only has to replay its writes faithfully and give them back at
// startup.  All timestamps are stored in UTC.
package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/bus-fleet-reservation/internal/fleet"
	"github.com/iliyamo/bus-fleet-reservation/internal/model"
)

// BookingStore provides durable persistence for bookings and seat
// assignments.  It implements fleet.Gateway.
type BookingStore struct {
	db *sql.DB
}

// NewBookingStore returns a store bound to the given database.
func NewBookingStore(db *sql.DB) *BookingStore { return &BookingStore{db: db} }

// DB exposes the underlying handle, mirroring the repository accessors
// used by handlers that need ad-hoc queries.
func (s *BookingStore) DB() *sql.DB { return s.db }

// EnsureSchema creates the bookings and bus_seats tables when they do
// not exist yet.  It is idempotent and safe to run at every startup.
func (s *BookingStore) EnsureSchema(ctx context.Context) error {
	const bookings = `CREATE TABLE IF NOT EXISTS bookings (
        booking_id  BIGINT UNSIGNED PRIMARY KEY,
        client_id   VARCHAR(64)  NOT NULL,
        bus_id      INT          NOT NULL,
        seat        INT          NOT NULL,
        travel_date CHAR(10)     NOT NULL,
        created_at  DATETIME     NOT NULL
    )`
	const seats = `CREATE TABLE IF NOT EXISTS bus_seats (
        bus_id      INT          NOT NULL,
        seat_number INT          NOT NULL,
        client_id   VARCHAR(64)  NOT NULL,
        travel_date CHAR(10)     NOT NULL,
        PRIMARY KEY (bus_id, seat_number, travel_date)
    )`
	if _, err := s.db.ExecContext(ctx, bookings); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, seats)
	return err
}

// WithAtomicTransaction runs fn inside a single database transaction
// with guaranteed commit-or-rollback on all exit paths.  A panic inside
// fn rolls the transaction back and is re-raised.
func (s *BookingStore) WithAtomicTransaction(ctx context.Context, fn func(tx fleet.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			_ = dbTx.Rollback()
		}
	}()
	if err := fn(storeTx{tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}
	done = true
	return nil
}

// storeTx adapts a *sql.Tx to the fleet.Tx write set.
type storeTx struct {
	tx *sql.Tx
}

// SaveBooking upserts a booking row.  Merges rewrite bookings in place,
// so the booking id may already exist with a different bus/seat.
func (t storeTx) SaveBooking(ctx context.Context, b model.Booking) error {
	const q = `REPLACE INTO bookings (booking_id, client_id, bus_id, seat, travel_date, created_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, b.ID, b.ClientID, b.BusID, b.Seat, b.Date,
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// DeleteBooking removes a booking row.  Deleting an absent row is not
// an error.
func (t storeTx) DeleteBooking(ctx context.Context, bookingID uint64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM bookings WHERE booking_id = ?`, bookingID)
	return err
}

// SaveSeatAssignment upserts one (bus, seat, date) -> client row.
func (t storeTx) SaveSeatAssignment(ctx context.Context, busID, seat int, clientID, date string) error {
	const q = `REPLACE INTO bus_seats (bus_id, seat_number, client_id, travel_date)
               VALUES (?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, busID, seat, clientID, date)
	return err
}

// DeleteSeatAssignment removes one seat assignment row.
func (t storeTx) DeleteSeatAssignment(ctx context.Context, busID, seat int, date string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM bus_seats WHERE bus_id = ? AND seat_number = ? AND travel_date = ?`,
		busID, seat, date)
	return err
}

// ListBookings returns every durable booking record ordered by booking
// id.  The engine replays them through Seed at startup.
func (s *BookingStore) ListBookings(ctx context.Context) ([]model.Booking, error) {
	const q = `SELECT booking_id, client_id, bus_id, seat, travel_date, created_at
               FROM bookings ORDER BY booking_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.ClientID, &b.BusID, &b.Seat, &b.Date, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClientBookings returns the durable records for one client, newest
// first.  Handlers normally read through the engine; this query backs
// ad-hoc reconciliation.
func (s *BookingStore) ClientBookings(ctx context.Context, clientID string) ([]model.Booking, error) {
	const q = `SELECT booking_id, client_id, bus_id, seat, travel_date, created_at
               FROM bookings WHERE client_id = ? ORDER BY booking_id DESC`
	rows, err := s.db.QueryContext(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.ClientID, &b.BusID, &b.Seat, &b.Date, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
