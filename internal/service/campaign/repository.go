package campaign

import (
	"context"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// CampaignStore reads campaigns and moves them through their lifecycle.
type CampaignStore interface {
	// GetCampaign returns domain.ErrNotFound if the campaign doesn't exist.
	GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error)

	// TransitionCampaign sets the status to `to` if the current status is one
	// of `from` (any status when from is empty) and reports whether it did.
	// Moving to sent also stamps SentAt.
	TransitionCampaign(ctx context.Context, id int64, to domain.CampaignStatus, at time.Time, from ...domain.CampaignStatus) (bool, error)
}

// RecipientLister resolves the addresses a campaign is delivered to.
type RecipientLister interface {
	ListActiveRecipients(ctx context.Context, listID int64) ([]domain.Recipient, error)
}

// EventWriter appends send outcomes to the event ledger.
type EventWriter interface {
	Insert(ctx context.Context, e *domain.EngagementEvent) error
}

// Stores bundles the collaborators the send path needs.
type Stores struct {
	Campaigns  CampaignStore
	Recipients RecipientLister
	Events     EventWriter
}

// Mailer delivers one prepared message.
type Mailer interface {
	Send(ctx context.Context, msg domain.OutboundMessage) error
}

// Personalizer expands merge tags in subject lines and bodies.
type Personalizer interface {
	Render(text string, vars map[string]interface{}) string
}
