package models

import "time"

// Audit entry kinds.
const (
	AuditKindTransition = "transition"
	AuditKindEvent      = "event"
)

// AuditEntry is one immutable line of the lifecycle audit trail: either a
// status transition or a free-form event (fill, error). Doubles as the
// gorm row for the durable sink and the JSONL line for the audit file.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	Kind      string    `gorm:"not null" json:"kind"`
	TradeID   string    `gorm:"index" json:"trade_id,omitempty"`
	Symbol    string    `gorm:"index" json:"symbol,omitempty"`

	// Transition fields.
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Trigger    string `json:"trigger,omitempty"`
	Context    string `json:"context,omitempty"`

	// Event fields.
	EventType string `json:"event_type,omitempty"`
	EventData string `json:"event_data,omitempty"`
}

// TableName sets the table name for AuditEntry.
func (AuditEntry) TableName() string {
	return "audit_entries"
}
