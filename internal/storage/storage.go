package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/engagement-tracker/internal/config"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/repository/memory"
	"github.com/ignite/engagement-tracker/internal/repository/postgres"
)

// CampaignStore reads campaigns and moves them between statuses.
type CampaignStore interface {
	GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error)
	TransitionCampaign(ctx context.Context, id int64, to domain.CampaignStatus, at time.Time, from ...domain.CampaignStatus) (bool, error)
}

// RecipientStore reads recipients and applies unsubscribes.
type RecipientStore interface {
	GetRecipient(ctx context.Context, id int64) (*domain.Recipient, error)
	ListActiveRecipients(ctx context.Context, listID int64) ([]domain.Recipient, error)
	Unsubscribe(ctx context.Context, evt *domain.EngagementEvent) (bool, error)
}

// EventStore is the full event ledger, both write and read side.
type EventStore interface {
	Insert(ctx context.Context, e *domain.EngagementEvent) error
	FindByTrackingID(ctx context.Context, trackingID string) (*domain.EngagementEvent, error)
	ExistsForRecipient(ctx context.Context, campaignID, recipientID int64, t domain.EventType) (bool, error)
	FindByCampaign(ctx context.Context, campaignID int64) ([]domain.EngagementEvent, error)
	FindByCampaignAndTimeRange(ctx context.Context, campaignID int64, from, to time.Time) ([]domain.EngagementEvent, error)
	CountsByType(ctx context.Context, campaignID int64) (map[domain.EventType]int, error)
	// CampaignsWithEventsSince lists campaigns with events stored at or
	// after since, by insert time rather than OccurredAt.
	CampaignsWithEventsSince(ctx context.Context, since time.Time) ([]int64, error)
}

// SnapshotStore keeps one analytics snapshot per campaign.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error)
	UpsertSnapshot(ctx context.Context, s domain.CampaignAnalyticsSnapshot) error
}

// Stores is the set of stores selected by configuration. DB is nil unless
// the postgres backend is in use.
type Stores struct {
	Campaigns  CampaignStore
	Recipients RecipientStore
	Events     EventStore
	Snapshots  SnapshotStore
	DB         *sql.DB
}

// New opens the backends named by cfg.Storage.
func New(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var st Stores

	switch cfg.Storage.Type {
	case config.StorageMemory:
		mem := memory.NewStore()
		st.Campaigns, st.Recipients, st.Events, st.Snapshots = mem, mem, mem, mem
		logger.Warn("using in-memory storage; data is lost on restart")
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		st.DB = db
		st.Campaigns = postgres.NewCampaignRepo(db)
		st.Recipients = postgres.NewRecipientRepo(db)
		st.Events = postgres.NewEventRepo(db)
		st.Snapshots = postgres.NewSnapshotRepo(db)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	if cfg.Storage.SnapshotBackend == config.StorageDynamoDB {
		awsCfg, err := LoadAWSConfig(ctx, AWSOptions{
			Region:  cfg.Storage.AWSRegion,
			Profile: cfg.Storage.AWSProfile,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		st.Snapshots = NewSnapshotTable(awsCfg, cfg.Storage.DynamoDBTable)
		logger.Info("snapshots stored in DynamoDB", "table", cfg.Storage.DynamoDBTable)
	}

	return &st, nil
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
