package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// RecipientRepo reads list members and records unsubscribes.
type RecipientRepo struct{ db *sql.DB }

func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

const recipientColumns = `id, list_id, email, COALESCE(first_name,''), COALESCE(last_name,''),
	status, subscribed_at, unsubscribed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecipient(s rowScanner) (*domain.Recipient, error) {
	r := &domain.Recipient{}
	var unsubscribedAt sql.NullTime
	if err := s.Scan(&r.ID, &r.ListID, &r.Email, &r.FirstName, &r.LastName,
		&r.Status, &r.SubscribedAt, &unsubscribedAt); err != nil {
		return nil, err
	}
	r.UnsubscribedAt = nullTime(unsubscribedAt)
	return r, nil
}

func (r *RecipientRepo) GetRecipient(ctx context.Context, id int64) (*domain.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx,
		`SELECT `+recipientColumns+` FROM engagement_recipients WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return rec, nil
}

func (r *RecipientRepo) ListActiveRecipients(ctx context.Context, listID int64) ([]domain.Recipient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recipientColumns+` FROM engagement_recipients
		 WHERE list_id = $1 AND status = $2
		 ORDER BY id`, listID, string(domain.RecipientActive))
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Unsubscribe flips the recipient to unsubscribed and appends evt in one
// transaction. It reports false, writing nothing, when the recipient was
// already unsubscribed.
func (r *RecipientRepo) Unsubscribe(ctx context.Context, evt *domain.EngagementEvent) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin unsubscribe: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE engagement_recipients
		SET status = $2, unsubscribed_at = $3
		WHERE id = $1 AND status <> $2
	`, evt.RecipientID, string(domain.RecipientUnsubscribed), evt.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("unsubscribe recipient %d: %w", evt.RecipientID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM engagement_recipients WHERE id = $1)`, evt.RecipientID,
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("check recipient %d: %w", evt.RecipientID, err)
		}
		if !exists {
			return false, domain.ErrNotFound
		}
		return false, nil
	}

	if err := insertEvent(ctx, tx, evt); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit unsubscribe: %w", err)
	}
	return true, nil
}
