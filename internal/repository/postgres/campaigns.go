package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/lib/pq"
)

// CampaignRepo reads campaigns and applies status transitions.
type CampaignRepo struct{ db *sql.DB }

func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var scheduledAt, sentAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, list_id, name, subject, sender_name, sender_email,
		       COALESCE(reply_to,''), COALESCE(content,''), status,
		       scheduled_at, sent_at, created_at, updated_at
		FROM engagement_campaigns
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.OwnerID, &c.ListID, &c.Name, &c.Subject, &c.SenderName, &c.SenderEmail,
		&c.ReplyTo, &c.Content, &c.Status,
		&scheduledAt, &sentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	c.ScheduledAt = nullTime(scheduledAt)
	c.SentAt = nullTime(sentAt)
	return c, nil
}

// TransitionCampaign is a compare-and-set on status. It returns
// domain.ErrNotFound for a missing campaign and false when the current status
// is not in from.
func (r *CampaignRepo) TransitionCampaign(ctx context.Context, id int64, to domain.CampaignStatus, at time.Time, from ...domain.CampaignStatus) (bool, error) {
	q := `
		UPDATE engagement_campaigns
		SET status = $2, updated_at = $3,
		    sent_at = CASE WHEN $4 THEN $3 ELSE sent_at END
		WHERE id = $1`
	args := []interface{}{id, string(to), at, to == domain.CampaignSent}
	if len(from) > 0 {
		states := make([]string, len(from))
		for i, s := range from {
			states[i] = string(s)
		}
		q += ` AND status = ANY($5)`
		args = append(args, pq.Array(states))
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("transition campaign %d to %s: %w", id, to, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM engagement_campaigns WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check campaign %d: %w", id, err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}
