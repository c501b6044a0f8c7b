package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// SnapshotRepo stores one analytics snapshot per campaign.
type SnapshotRepo struct{ db *sql.DB }

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) GetSnapshot(ctx context.Context, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error) {
	s := &domain.CampaignAnalyticsSnapshot{}
	err := r.db.QueryRowContext(ctx, `
		SELECT campaign_id, total_sent, total_delivered, total_opened, total_clicked,
		       total_bounced, total_complained, total_unsubscribed,
		       open_rate, click_rate, bounce_rate, unsubscribe_rate, calculated_at
		FROM engagement_snapshots
		WHERE campaign_id = $1
	`, campaignID).Scan(
		&s.CampaignID, &s.TotalSent, &s.TotalDelivered, &s.TotalOpened, &s.TotalClicked,
		&s.TotalBounced, &s.TotalComplained, &s.TotalUnsubscribed,
		&s.OpenRate, &s.ClickRate, &s.BounceRate, &s.UnsubscribeRate, &s.CalculatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return s, nil
}

// UpsertSnapshot replaces the campaign's snapshot. Concurrent writers race;
// the last one wins.
func (r *SnapshotRepo) UpsertSnapshot(ctx context.Context, s domain.CampaignAnalyticsSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO engagement_snapshots (
			campaign_id, total_sent, total_delivered, total_opened, total_clicked,
			total_bounced, total_complained, total_unsubscribed,
			open_rate, click_rate, bounce_rate, unsubscribe_rate, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (campaign_id) DO UPDATE SET
			total_sent = EXCLUDED.total_sent,
			total_delivered = EXCLUDED.total_delivered,
			total_opened = EXCLUDED.total_opened,
			total_clicked = EXCLUDED.total_clicked,
			total_bounced = EXCLUDED.total_bounced,
			total_complained = EXCLUDED.total_complained,
			total_unsubscribed = EXCLUDED.total_unsubscribed,
			open_rate = EXCLUDED.open_rate,
			click_rate = EXCLUDED.click_rate,
			bounce_rate = EXCLUDED.bounce_rate,
			unsubscribe_rate = EXCLUDED.unsubscribe_rate,
			calculated_at = EXCLUDED.calculated_at
	`, s.CampaignID, s.TotalSent, s.TotalDelivered, s.TotalOpened, s.TotalClicked,
		s.TotalBounced, s.TotalComplained, s.TotalUnsubscribed,
		s.OpenRate, s.ClickRate, s.BounceRate, s.UnsubscribeRate, s.CalculatedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
