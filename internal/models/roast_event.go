package models

import "time"

// Event types written to the roast log.
const (
	EventStart   = "START"
	EventStop    = "STOP"
	EventPhase   = "PHASE"
	EventStatus  = "STATUS"
	EventWarning = "WARNING"
	EventError   = "ERROR"
)

// RoastEvent is a single log entry.
type RoastEvent struct {
	EventID     string    `json:"event_id"`
	RoastID     string    `json:"roast_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | STOP | PHASE | STATUS | WARNING | ERROR
	Description string    `json:"description"` // operator-facing text
	Metadata    any       `json:"metadata,omitempty"`
}
