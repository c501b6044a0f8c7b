package analytics

import (
	"context"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// EventReader is the read side of the event ledger.
type EventReader interface {
	FindByCampaign(ctx context.Context, campaignID int64) ([]domain.EngagementEvent, error)
	// FindByCampaignAndTimeRange returns events with from <= OccurredAt < to.
	FindByCampaignAndTimeRange(ctx context.Context, campaignID int64, from, to time.Time) ([]domain.EngagementEvent, error)
	CountsByType(ctx context.Context, campaignID int64) (map[domain.EventType]int, error)
	// CampaignsWithEventsSince lists campaigns with events stored at or
	// after since, by insert time rather than OccurredAt.
	CampaignsWithEventsSince(ctx context.Context, since time.Time) ([]int64, error)
}

// SnapshotStore persists one snapshot per campaign.
type SnapshotStore interface {
	// GetSnapshot returns domain.ErrNotFound when no snapshot exists yet.
	GetSnapshot(ctx context.Context, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error)
	UpsertSnapshot(ctx context.Context, s domain.CampaignAnalyticsSnapshot) error
}

// CampaignLookup resolves campaigns by id.
type CampaignLookup interface {
	GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error)
}

// Stores bundles the collaborators the aggregator reads and writes.
type Stores struct {
	Events    EventReader
	Snapshots SnapshotStore
	Campaigns CampaignLookup
}
