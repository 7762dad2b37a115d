// Package queue defines the audit event payload exchanged over the
// message broker and the background consumer that archives it.
package queue

// AuditQueueName is the durable queue carrying fleet audit events.
const AuditQueueName = "fleet.audit"

// AuditEvent is one human-readable engine event.  The message stays
// deliberately small: downstream consumers only archive and tail it.
type AuditEvent struct {
	Message    string `json:"message"`
	RecordedAt string `json:"recorded_at"`
}
