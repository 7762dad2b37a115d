package model

// LedgerStatus is the closed set of lifecycle states a seat ledger moves
// through.  Active ledgers accept new claims.  Merging is a transient
// state entered while a consolidation pass migrates holds out; no new
// claims are accepted.  Merged is terminal: the ledger's seat maps are
// cleared and it is permanently excluded from allocation.
type LedgerStatus int

const (
	StatusActive LedgerStatus = iota
	StatusMerging
	StatusMerged
)

// String returns the wire/display form of the status.
func (s LedgerStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusMerging:
		return "merging"
	case StatusMerged:
		return "merged"
	default:
		return "unknown"
	}
}
