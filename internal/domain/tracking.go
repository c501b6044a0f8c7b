package domain

import "time"

// EventType enumerates the engagement event kinds recorded in the ledger.
type EventType string

const (
	EventSent         EventType = "SENT"
	EventDelivered    EventType = "DELIVERED"
	EventOpened       EventType = "OPENED"
	EventClicked      EventType = "CLICKED"
	EventBounced      EventType = "BOUNCED"
	EventComplained   EventType = "COMPLAINED"
	EventUnsubscribed EventType = "UNSUBSCRIBED"
)

// EventTypes lists every event type in reporting order.
var EventTypes = []EventType{
	EventSent, EventDelivered, EventOpened, EventClicked,
	EventBounced, EventComplained, EventUnsubscribed,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, et := range EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Classification labels used when a value cannot be determined.
const (
	DeviceUnknown = "Unknown"
	ClientUnknown = "Unknown"
)

// EngagementEvent is one immutable interaction record. Events are only ever
// appended; nothing updates or deletes them.
type EngagementEvent struct {
	ID            string    `json:"id" db:"id"`
	TrackingID    string    `json:"tracking_id" db:"tracking_id"`
	Type          EventType `json:"event_type" db:"event_type"`
	CampaignID    int64     `json:"campaign_id" db:"campaign_id"`
	RecipientID   int64     `json:"recipient_id" db:"recipient_id"`
	OccurredAt    time.Time `json:"occurred_at" db:"occurred_at"`
	SourceAddress string    `json:"source_address,omitempty" db:"source_address"`
	UserAgent     string    `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType    string    `json:"device_type,omitempty" db:"device_type"`
	MailClient    string    `json:"mail_client,omitempty" db:"mail_client"`
	Location      string    `json:"location,omitempty" db:"location"`
	LinkURL       string    `json:"link_url,omitempty" db:"link_url"`
}

// RequestMeta describes the client behind a tracking hit. It is built once
// per request and passed by value.
type RequestMeta struct {
	SourceAddress string    `json:"source_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Location      string    `json:"location,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}
