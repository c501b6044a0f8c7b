package engagement

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// EventStore is the append-only event ledger.
type EventStore interface {
	// Insert appends an event. Events are never updated afterwards.
	Insert(ctx context.Context, e *domain.EngagementEvent) error

	// FindByTrackingID returns domain.ErrNotFound for unknown ids.
	FindByTrackingID(ctx context.Context, trackingID string) (*domain.EngagementEvent, error)

	ExistsForRecipient(ctx context.Context, campaignID, recipientID int64, t domain.EventType) (bool, error)
}

// CampaignLookup resolves campaigns by id.
type CampaignLookup interface {
	// GetCampaign returns domain.ErrNotFound if the campaign doesn't exist.
	GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error)
}

// RecipientStore resolves recipients and applies unsubscribes.
type RecipientStore interface {
	// GetRecipient returns domain.ErrNotFound if the recipient doesn't exist.
	GetRecipient(ctx context.Context, id int64) (*domain.Recipient, error)

	// Unsubscribe moves evt's recipient to unsubscribed and appends evt in
	// one step. It reports false, appending nothing, when the recipient was
	// already unsubscribed.
	Unsubscribe(ctx context.Context, evt *domain.EngagementEvent) (bool, error)
}

// Stores bundles the collaborators the service reads and writes.
type Stores struct {
	Events     EventStore
	Campaigns  CampaignLookup
	Recipients RecipientStore
}
