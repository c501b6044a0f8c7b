package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/tracking"
)

// Service starts campaign sends and performs them in the background.
type Service struct {
	stores   Stores
	rewriter *tracking.Rewriter
	mailer   Mailer
	render   Personalizer
	pool     *Pool
	now      func() time.Time
	newID    func() string
}

// NewService wires the send path. The pool must be started by the caller.
func NewService(st Stores, rw *tracking.Rewriter, m Mailer, p Personalizer, pool *Pool) *Service {
	return &Service{
		stores:   st,
		rewriter: rw,
		mailer:   m,
		render:   p,
		pool:     pool,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Send claims a draft or scheduled campaign for sending and queues the
// delivery. It returns once the job is queued; delivery outcomes are only
// visible as events.
func (s *Service) Send(ctx context.Context, ownerID string, campaignID int64) error {
	c, err := s.stores.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("campaign %d: %w", campaignID, err)
	}
	if c.OwnerID != ownerID {
		return domain.ErrAccessDenied
	}
	if !c.CanSend() {
		return fmt.Errorf("campaign %d is %s: %w", campaignID, c.Status, domain.ErrInvalidState)
	}

	ok, err := s.stores.Campaigns.TransitionCampaign(ctx, campaignID, domain.CampaignSending, s.now().UTC(),
		domain.CampaignDraft, domain.CampaignScheduled)
	if err != nil {
		return fmt.Errorf("transition to sending: %w", err)
	}
	if !ok {
		// Another request claimed it between the read and the update.
		return fmt.Errorf("campaign %d: %w", campaignID, domain.ErrInvalidState)
	}

	snapshot := *c
	if err := s.pool.Submit(func(jctx context.Context) { s.Deliver(jctx, snapshot) }); err != nil {
		if _, rbErr := s.stores.Campaigns.TransitionCampaign(ctx, campaignID, c.Status, s.now().UTC(), domain.CampaignSending); rbErr != nil {
			logger.Error("send rollback failed", "campaign_id", campaignID, "error", rbErr)
		}
		return fmt.Errorf("queue send: %w", err)
	}

	logger.Info("campaign send queued", "campaign_id", campaignID, "list_id", c.ListID)
	return nil
}

// Deliver sends c to every active recipient of its list and marks it sent.
// It returns the number of delivered and bounced recipients; a recipient
// whose placeholder could not be stored counts as neither.
func (s *Service) Deliver(ctx context.Context, c domain.Campaign) (sent, bounced int) {
	recipients, err := s.stores.Recipients.ListActiveRecipients(ctx, c.ListID)
	if err != nil {
		logger.Error("list recipients failed", "campaign_id", c.ID, "list_id", c.ListID, "error", err)
		s.finish(ctx, c.ID, domain.CampaignFailed)
		return 0, 0
	}

	for i := range recipients {
		if ctx.Err() != nil {
			logger.Warn("campaign send interrupted",
				"campaign_id", c.ID, "sent", sent, "bounced", bounced, "remaining", len(recipients)-i)
			s.finish(context.Background(), c.ID, domain.CampaignFailed)
			return sent, bounced
		}
		switch s.deliverOne(ctx, &c, &recipients[i]) {
		case outcomeSent:
			sent++
		case outcomeBounced:
			bounced++
		}
	}

	s.finish(ctx, c.ID, domain.CampaignSent)
	logger.Info("campaign send complete", "campaign_id", c.ID, "sent", sent, "bounced", bounced)
	return sent, bounced
}

type outcome string

const (
	outcomeSent    outcome = "sent"
	outcomeBounced outcome = "bounced"
	// the SENT placeholder could not be stored, so nothing was sent
	outcomeSkipped outcome = "skipped"
)

// deliverOne renders, records and sends one recipient. The SENT placeholder
// carrying the pixel id is stored before the mailer is called; a failed send
// appends BOUNCED after it.
func (s *Service) deliverOne(ctx context.Context, c *domain.Campaign, r *domain.Recipient) outcome {
	vars := map[string]interface{}{
		"first_name":      r.FirstName,
		"last_name":       r.LastName,
		"email":           r.Email,
		"campaign_name":   c.Name,
		"unsubscribe_url": s.rewriter.UnsubscribeURL(c.ID, r.ID),
	}
	tracked := s.rewriter.Rewrite(s.render.Render(c.Content, vars), c.ID, r.ID)

	msg := domain.OutboundMessage{
		To:          r.Email,
		From:        c.From(),
		ReplyTo:     c.ReplyTo,
		Subject:     s.render.Render(c.Subject, vars),
		HTML:        tracked.HTML,
		CampaignID:  c.ID,
		RecipientID: r.ID,
	}

	placeholder := &domain.EngagementEvent{
		ID:          s.newID(),
		TrackingID:  tracked.TrackingID,
		Type:        domain.EventSent,
		CampaignID:  c.ID,
		RecipientID: r.ID,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.stores.Events.Insert(ctx, placeholder); err != nil {
		observability.Sends.WithLabelValues(string(outcomeSkipped)).Inc()
		logger.Error("send placeholder not recorded, recipient skipped",
			"campaign_id", c.ID, "recipient_id", r.ID, "error", err)
		return outcomeSkipped
	}
	observability.EventsRecorded.WithLabelValues(string(domain.EventSent)).Inc()

	err := s.mailer.Send(ctx, msg)
	if err == nil {
		observability.Sends.WithLabelValues(string(outcomeSent)).Inc()
		return outcomeSent
	}

	var te *domain.TransportError
	if !errors.As(err, &te) {
		te = &domain.TransportError{CampaignID: c.ID, RecipientID: r.ID, Err: err}
	}
	logger.Warn("delivery failed", "campaign_id", c.ID, "recipient_id", r.ID, "email", r.Email, "error", te)
	observability.Sends.WithLabelValues(string(outcomeBounced)).Inc()

	bounce := &domain.EngagementEvent{
		ID:          s.newID(),
		TrackingID:  s.newID(),
		Type:        domain.EventBounced,
		CampaignID:  c.ID,
		RecipientID: r.ID,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.stores.Events.Insert(ctx, bounce); err != nil {
		logger.Error("bounce not recorded", "campaign_id", c.ID, "recipient_id", r.ID, "error", err)
		return outcomeBounced
	}
	observability.EventsRecorded.WithLabelValues(string(domain.EventBounced)).Inc()
	return outcomeBounced
}

func (s *Service) finish(ctx context.Context, campaignID int64, status domain.CampaignStatus) {
	if _, err := s.stores.Campaigns.TransitionCampaign(ctx, campaignID, status, s.now().UTC(), domain.CampaignSending); err != nil {
		logger.Error("campaign status update failed", "campaign_id", campaignID, "status", string(status), "error", err)
	}
}
