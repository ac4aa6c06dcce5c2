package models

import "time"

// Event types written to the feed log.
const (
	EventFeedStart      = "FEED_START"
	EventFeedDone       = "FEED_DONE"
	EventStateChange    = "STATE_CHANGE"
	EventFault          = "FAULT"
	EventScheduleUpdate = "SCHEDULE_UPDATE"
	EventScheduleReset  = "SCHEDULE_RESET"
	EventRecovery       = "RECOVERY"
)

// FeedEvent is a single log entry.
type FeedEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // FEED_START | FEED_DONE | STATE_CHANGE | FAULT | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
