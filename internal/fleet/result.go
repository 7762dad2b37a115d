package fleet

import "errors"

// Validation errors signal a broken caller contract.  They are returned
// as Go errors and are never retried, unlike the business outcomes
// below, which are values on the result structs.
var (
	ErrMissingClient = errors.New("client id is required")
	ErrMissingDate   = errors.New("travel date is required")
	ErrInvalidSeat   = errors.New("seat number must be positive")
)

// Reason is the closed set of failure codes carried by result structs.
// A successful result carries ReasonNone.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNoCapacity         Reason = "no_capacity"
	ReasonNotFound           Reason = "not_found"
	ReasonUnauthorized       Reason = "unauthorized"
	ReasonLoadTooHigh        Reason = "load_too_high"
	ReasonPersistenceFailure Reason = "persistence_failure"
)

// BookResult is the outcome of a booking attempt.  Failure to find a
// seat is a normal outcome, not an error: callers inspect OK and Reason.
type BookResult struct {
	OK        bool   `json:"-"`
	Status    string `json:"status"`
	Reason    Reason `json:"reason,omitempty"`
	BookingID uint64 `json:"booking_id,omitempty"`
	BusID     int    `json:"bus_id,omitempty"`
	Seat      int    `json:"seat,omitempty"`
	Date      string `json:"date,omitempty"`
}

func bookSuccess(bookingID uint64, busID, seat int, date string) BookResult {
	return BookResult{OK: true, Status: "success", BookingID: bookingID, BusID: busID, Seat: seat, Date: date}
}

func bookFailure(r Reason) BookResult {
	return BookResult{Status: "failure", Reason: r}
}

// CancelResult is the outcome of a cancellation attempt.
type CancelResult struct {
	OK     bool   `json:"-"`
	Status string `json:"status"`
	Reason Reason `json:"reason,omitempty"`
}

func cancelSuccess() CancelResult { return CancelResult{OK: true, Status: "success"} }

func cancelFailure(r Reason) CancelResult { return CancelResult{Status: "failure", Reason: r} }

// HoldResult is the outcome of a provisional hold attempt.  The token
// identifies the hold for later confirmation or release.
type HoldResult struct {
	OK        bool   `json:"-"`
	Status    string `json:"status"`
	Reason    Reason `json:"reason,omitempty"`
	HoldToken string `json:"hold_token,omitempty"`
	BusID     int    `json:"bus_id,omitempty"`
	Seat      int    `json:"seat,omitempty"`
	Date      string `json:"date,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// MergeResult is the outcome of an administrative consolidation pass.
// Orphaned counts holds that could not be placed on any keep-ledger;
// they are surfaced as a warning, not a failure of the whole merge.
type MergeResult struct {
	OK       bool   `json:"-"`
	Status   string `json:"status"`
	Reason   Reason `json:"reason,omitempty"`
	Merged   []int  `json:"merged"`
	Kept     int    `json:"kept"`
	Orphaned int    `json:"orphaned,omitempty"`
}

// Overview aggregates fleet-wide counters for the admin surface.
type Overview struct {
	TotalBuses    int     `json:"total_buses"`
	ActiveBuses   int     `json:"active_buses"`
	MergedBuses   int     `json:"merged_buses"`
	TotalSeats    int     `json:"total_seats"`
	BookedSeats   int     `json:"booked_seats"`
	LoadFactor    float64 `json:"load_factor"`
	TotalVisitors int     `json:"total_visitors"`
	TotalBookings int     `json:"total_bookings"`
}
