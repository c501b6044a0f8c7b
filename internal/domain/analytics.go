package domain

import "time"

// CampaignAnalyticsSnapshot is the latest aggregate for one campaign. It is
// recomputed wholesale and overwrites any previous snapshot.
type CampaignAnalyticsSnapshot struct {
	CampaignID        int64     `json:"campaign_id" dynamodbav:"campaign_id"`
	TotalSent         int       `json:"total_sent" dynamodbav:"total_sent"`
	TotalDelivered    int       `json:"total_delivered" dynamodbav:"total_delivered"`
	TotalOpened       int       `json:"total_opened" dynamodbav:"total_opened"`
	TotalClicked      int       `json:"total_clicked" dynamodbav:"total_clicked"`
	TotalBounced      int       `json:"total_bounced" dynamodbav:"total_bounced"`
	TotalComplained   int       `json:"total_complained" dynamodbav:"total_complained"`
	TotalUnsubscribed int       `json:"total_unsubscribed" dynamodbav:"total_unsubscribed"`
	OpenRate          float64   `json:"open_rate" dynamodbav:"open_rate"`
	ClickRate         float64   `json:"click_rate" dynamodbav:"click_rate"`
	BounceRate        float64   `json:"bounce_rate" dynamodbav:"bounce_rate"`
	UnsubscribeRate   float64   `json:"unsubscribe_rate" dynamodbav:"unsubscribe_rate"`
	CalculatedAt      time.Time `json:"calculated_at" dynamodbav:"calculated_at"`
}

// NewSnapshot builds a snapshot from per-type event counts and derives the
// rates.
func NewSnapshot(campaignID int64, counts map[EventType]int, at time.Time) CampaignAnalyticsSnapshot {
	s := CampaignAnalyticsSnapshot{
		CampaignID:        campaignID,
		TotalSent:         counts[EventSent],
		TotalDelivered:    counts[EventDelivered],
		TotalOpened:       counts[EventOpened],
		TotalClicked:      counts[EventClicked],
		TotalBounced:      counts[EventBounced],
		TotalComplained:   counts[EventComplained],
		TotalUnsubscribed: counts[EventUnsubscribed],
		CalculatedAt:      at,
	}
	s.OpenRate = Rate(s.TotalOpened, s.TotalSent)
	s.ClickRate = Rate(s.TotalClicked, s.TotalSent)
	s.BounceRate = Rate(s.TotalBounced, s.TotalSent)
	s.UnsubscribeRate = Rate(s.TotalUnsubscribed, s.TotalSent)
	return s
}

// Rate returns count/total as a percentage, or 0 when total is 0.
func Rate(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// HourlyStat is one hour-of-day row of the engagement breakdown.
type HourlyStat struct {
	Hour   int `json:"hour"`
	Opens  int `json:"opens"`
	Clicks int `json:"clicks"`
}

// BreakdownRow is one categorical row (device type or location).
type BreakdownRow struct {
	Key        string  `json:"key"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CampaignAnalyticsReport is the reporting view of a campaign: the snapshot
// plus breakdowns computed from raw events.
type CampaignAnalyticsReport struct {
	CampaignName string `json:"campaign_name"`
	Subject      string `json:"subject"`
	CampaignAnalyticsSnapshot
	Hourly    []HourlyStat   `json:"hourly_stats"`
	Devices   []BreakdownRow `json:"device_stats"`
	Locations []BreakdownRow `json:"location_stats"`
}
