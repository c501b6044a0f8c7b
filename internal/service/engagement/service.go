package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/tracking"
)

// Service records tracking hits. It holds no per-request state and is safe
// for concurrent use if the stores are.
type Service struct {
	stores Stores
	now    func() time.Time
	newID  func() string
}

// NewService creates an ingestion service backed by the given stores.
func NewService(st Stores) *Service {
	return &Service{
		stores: st,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

var _ tracking.Ingestor = (*Service)(nil)

// RecordOpen records the first open of a campaign by a recipient. Unknown
// tracking ids are ignored and repeat opens are only logged. Two pixel
// fetches racing each other may both insert; that is tolerated.
func (s *Service) RecordOpen(ctx context.Context, trackingID string, meta domain.RequestMeta) error {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil
	}

	placeholder, err := s.stores.Events.FindByTrackingID(ctx, trackingID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("open for unknown pixel", "tracking_id", trackingID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve pixel %s: %w", trackingID, err)
	}

	opened, err := s.stores.Events.ExistsForRecipient(ctx, placeholder.CampaignID, placeholder.RecipientID, domain.EventOpened)
	if err != nil {
		return fmt.Errorf("check prior open: %w", err)
	}
	if opened {
		logger.Debug("repeat open",
			"campaign_id", placeholder.CampaignID,
			"recipient_id", placeholder.RecipientID,
			"source", meta.SourceAddress)
		return nil
	}

	evt := s.newEvent(domain.EventOpened, placeholder.CampaignID, placeholder.RecipientID, meta)
	if err := s.stores.Events.Insert(ctx, evt); err != nil {
		return fmt.Errorf("insert open: %w", err)
	}
	observability.EventsRecorded.WithLabelValues(string(domain.EventOpened)).Inc()
	return nil
}

// RecordClick decodes a click token and returns its target URL. Every
// decodable click with a known campaign and recipient is recorded; clicks
// are not deduplicated. Lookup and store failures are returned together
// with the target so callers can still redirect.
func (s *Service) RecordClick(ctx context.Context, token string, meta domain.RequestMeta) (string, error) {
	tok, err := tracking.Decode(token)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(tok.Payload)
	if !tracking.Redirectable(target) {
		return "", domain.ErrMissingTarget
	}

	ok, err := s.known(ctx, tok.CampaignID, tok.RecipientID)
	if err != nil {
		return target, err
	}
	if !ok {
		return target, nil
	}

	evt := s.newEvent(domain.EventClicked, tok.CampaignID, tok.RecipientID, meta)
	evt.LinkURL = target
	if err := s.stores.Events.Insert(ctx, evt); err != nil {
		return target, fmt.Errorf("insert click campaign %d recipient %d: %w", tok.CampaignID, tok.RecipientID, err)
	}
	observability.EventsRecorded.WithLabelValues(string(domain.EventClicked)).Inc()
	return target, nil
}

// RecordUnsubscribe unsubscribes the recipient named by the token. Replays
// are no-ops: the status change and its event happen at most once.
func (s *Service) RecordUnsubscribe(ctx context.Context, token string, meta domain.RequestMeta) error {
	tok, err := tracking.Decode(token)
	if err != nil {
		return err
	}

	if _, err := s.stores.Campaigns.GetCampaign(ctx, tok.CampaignID); err != nil {
		return fmt.Errorf("unsubscribe campaign %d: %w", tok.CampaignID, err)
	}
	if _, err := s.stores.Recipients.GetRecipient(ctx, tok.RecipientID); err != nil {
		return fmt.Errorf("unsubscribe recipient %d: %w", tok.RecipientID, err)
	}

	evt := s.newEvent(domain.EventUnsubscribed, tok.CampaignID, tok.RecipientID, meta)
	changed, err := s.stores.Recipients.Unsubscribe(ctx, evt)
	if err != nil {
		return fmt.Errorf("unsubscribe recipient %d: %w", tok.RecipientID, err)
	}
	if !changed {
		logger.Info("already unsubscribed", "campaign_id", tok.CampaignID, "recipient_id", tok.RecipientID)
		return nil
	}

	observability.EventsRecorded.WithLabelValues(string(domain.EventUnsubscribed)).Inc()
	logger.Info("recipient unsubscribed", "campaign_id", tok.CampaignID, "recipient_id", tok.RecipientID)
	return nil
}

// known reports whether both ids resolve. ErrNotFound means unknown; any
// other lookup error is returned.
func (s *Service) known(ctx context.Context, campaignID, recipientID int64) (bool, error) {
	if _, err := s.stores.Campaigns.GetCampaign(ctx, campaignID); err != nil {
		return false, clickLookup("campaign", campaignID, err)
	}
	if _, err := s.stores.Recipients.GetRecipient(ctx, recipientID); err != nil {
		return false, clickLookup("recipient", recipientID, err)
	}
	return true, nil
}

func clickLookup(kind string, id int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("click for unknown "+kind, "id", id)
		return nil
	}
	return fmt.Errorf("click lookup %s %d: %w", kind, id, err)
}

func (s *Service) newEvent(t domain.EventType, campaignID, recipientID int64, meta domain.RequestMeta) *domain.EngagementEvent {
	at := meta.ReceivedAt
	if at.IsZero() {
		at = s.now()
	}
	return &domain.EngagementEvent{
		ID:            s.newID(),
		TrackingID:    s.newID(),
		Type:          t,
		CampaignID:    campaignID,
		RecipientID:   recipientID,
		OccurredAt:    at.UTC(),
		SourceAddress: meta.SourceAddress,
		UserAgent:     meta.UserAgent,
		DeviceType:    tracking.ClassifyDevice(meta.UserAgent),
		MailClient:    tracking.ClassifyMailClient(meta.UserAgent),
		Location:      meta.Location,
	}
}
