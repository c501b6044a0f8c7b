package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignPaused    CampaignStatus = "paused"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign is the subset of a campaign the engine needs: identity,
// ownership, content and delivery settings.
type Campaign struct {
	ID          int64          `json:"id" db:"id"`
	OwnerID     string         `json:"owner_id" db:"owner_id"`
	ListID      int64          `json:"list_id" db:"list_id"`
	Name        string         `json:"name" db:"name"`
	Subject     string         `json:"subject" db:"subject"`
	SenderName  string         `json:"sender_name" db:"sender_name"`
	SenderEmail string         `json:"sender_email" db:"sender_email"`
	ReplyTo     string         `json:"reply_to" db:"reply_to"`
	Content     string         `json:"content" db:"content"`
	Status      CampaignStatus `json:"status" db:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time     `json:"sent_at" db:"sent_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// CanSend reports whether a send may be started from the current status.
func (c *Campaign) CanSend() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// From returns the formatted sender address.
func (c *Campaign) From() string {
	if c.SenderName == "" {
		return c.SenderEmail
	}
	return c.SenderName + " <" + c.SenderEmail + ">"
}

// RecipientStatus is the subscription state of a recipient.
type RecipientStatus string

const (
	RecipientActive       RecipientStatus = "active"
	RecipientUnsubscribed RecipientStatus = "unsubscribed"
	RecipientBounced      RecipientStatus = "bounced"
)

// Recipient is a single address on a recipient list.
type Recipient struct {
	ID             int64           `json:"id" db:"id"`
	ListID         int64           `json:"list_id" db:"list_id"`
	Email          string          `json:"email" db:"email"`
	FirstName      string          `json:"first_name" db:"first_name"`
	LastName       string          `json:"last_name" db:"last_name"`
	Status         RecipientStatus `json:"status" db:"status"`
	SubscribedAt   time.Time       `json:"subscribed_at" db:"subscribed_at"`
	UnsubscribedAt *time.Time      `json:"unsubscribed_at" db:"unsubscribed_at"`
}

// OutboundMessage is one fully prepared email handed to a mailer.
type OutboundMessage struct {
	To          string
	From        string
	ReplyTo     string
	Subject     string
	HTML        string
	CampaignID  int64
	RecipientID int64
}
