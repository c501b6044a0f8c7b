package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// EventRepo is the append-only engagement event ledger.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, tracking_id, event_type, campaign_id, recipient_id, occurred_at,
	COALESCE(source_address,''), COALESCE(user_agent,''), COALESCE(device_type,''),
	COALESCE(mail_client,''), COALESCE(location,''), COALESCE(link_url,'')`

func insertEvent(ctx context.Context, ex execer, e *domain.EngagementEvent) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO engagement_events (
			id, tracking_id, event_type, campaign_id, recipient_id, occurred_at,
			source_address, user_agent, device_type, mail_client, location, link_url
		) VALUES ($1, $2, $3, $4, $5, $6,
			NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), NULLIF($10,''), NULLIF($11,''), NULLIF($12,''))
	`, e.ID, e.TrackingID, string(e.Type), e.CampaignID, e.RecipientID, e.OccurredAt,
		e.SourceAddress, e.UserAgent, e.DeviceType, e.MailClient, e.Location, e.LinkURL)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", e.Type, err)
	}
	return nil
}

func (r *EventRepo) Insert(ctx context.Context, e *domain.EngagementEvent) error {
	return insertEvent(ctx, r.db, e)
}

func scanEvent(s rowScanner) (*domain.EngagementEvent, error) {
	e := &domain.EngagementEvent{}
	err := s.Scan(&e.ID, &e.TrackingID, &e.Type, &e.CampaignID, &e.RecipientID, &e.OccurredAt,
		&e.SourceAddress, &e.UserAgent, &e.DeviceType, &e.MailClient, &e.Location, &e.LinkURL)
	return e, err
}

func (r *EventRepo) FindByTrackingID(ctx context.Context, trackingID string) (*domain.EngagementEvent, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM engagement_events WHERE tracking_id = $1`, trackingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find event by tracking id: %w", err)
	}
	return e, nil
}

func (r *EventRepo) ExistsForRecipient(ctx context.Context, campaignID, recipientID int64, t domain.EventType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM engagement_events
			WHERE campaign_id = $1 AND recipient_id = $2 AND event_type = $3
		)`, campaignID, recipientID, string(t)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s event: %w", t, err)
	}
	return exists, nil
}

func (r *EventRepo) FindByCampaign(ctx context.Context, campaignID int64) ([]domain.EngagementEvent, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM engagement_events
		WHERE campaign_id = $1 ORDER BY occurred_at`, campaignID)
}

// FindByCampaignAndTimeRange returns events with from <= occurred_at < to.
func (r *EventRepo) FindByCampaignAndTimeRange(ctx context.Context, campaignID int64, from, to time.Time) ([]domain.EngagementEvent, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM engagement_events
		WHERE campaign_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at`, campaignID, from, to)
}

func (r *EventRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.EngagementEvent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.EngagementEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EventRepo) CountsByType(ctx context.Context, campaignID int64) (map[domain.EventType]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM engagement_events
		WHERE campaign_id = $1
		GROUP BY event_type`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EventType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.EventType(t)] = n
	}
	return counts, rows.Err()
}

// CampaignsWithEventsSince selects by ingested_at, which the database sets
// on insert.
func (r *EventRepo) CampaignsWithEventsSince(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT campaign_id FROM engagement_events
		WHERE ingested_at >= $1
		ORDER BY campaign_id`, since)
	if err != nil {
		return nil, fmt.Errorf("active campaigns: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan campaign id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
