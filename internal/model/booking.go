package model

import "time"

// Booking is the registry record created for every confirmed seat claim.
// The (BusID, Seat, Date) triple is unique across the whole registry; a
// booking always corresponds to exactly one live seat entry in some
// ledger, except during the short window of a merge transfer, where the
// old entry is cleared only after the new one is in place.  After a
// merge the BusID and Seat fields are rewritten in place, so the
// registry, not the ledger a booking was created on, is the source of
// truth for where the client actually sits.
//
// IDs are globally unique and monotonically assigned by the manager.
// Seat is 1..capacity of the carrying ledger, Date is formatted
// YYYY-MM-DD and CreatedAt is the UTC timestamp of the original claim.
type Booking struct {
	ID        uint64    `json:"booking_id"`
	ClientID  string    `json:"client_id"`
	BusID     int       `json:"bus_id"`
	Seat      int       `json:"seat"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}
