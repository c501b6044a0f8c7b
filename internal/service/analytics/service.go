package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// ErrInvalidWindow is returned for a report window that ends before it
// starts.
var ErrInvalidWindow = errors.New("window end must be after start")

// Window restricts report breakdowns to [From, To). Zero bounds are open.
type Window struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the window covers all time.
func (w Window) IsZero() bool { return w.From.IsZero() && w.To.IsZero() }

// Service computes snapshots and reports.
type Service struct {
	stores Stores
	now    func() time.Time
}

func NewService(st Stores) *Service {
	return &Service{stores: st, now: time.Now}
}

// Recompute counts the campaign's events by type, derives the rates and
// overwrites the stored snapshot.
func (s *Service) Recompute(ctx context.Context, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error) {
	if _, err := s.stores.Campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("campaign %d: %w", campaignID, err)
	}
	return s.recompute(ctx, campaignID)
}

func (s *Service) recompute(ctx context.Context, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error) {
	start := time.Now()
	counts, err := s.stores.Events.CountsByType(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	snap := domain.NewSnapshot(campaignID, counts, s.now().UTC())
	if err := s.stores.Snapshots.UpsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	observability.RecomputeLatency.Observe(time.Since(start).Seconds())
	logger.Debug("snapshot recomputed", "campaign_id", campaignID, "total_sent", snap.TotalSent)
	return &snap, nil
}

// Recalculate is Recompute for a caller that must own the campaign.
func (s *Service) Recalculate(ctx context.Context, ownerID string, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error) {
	if _, err := s.authorize(ctx, ownerID, campaignID); err != nil {
		return nil, err
	}
	return s.recompute(ctx, campaignID)
}

// Report returns the campaign's snapshot, computing it first if none exists,
// together with hourly, device and location breakdowns of its events.
func (s *Service) Report(ctx context.Context, ownerID string, campaignID int64, w Window) (*domain.CampaignAnalyticsReport, error) {
	if !w.From.IsZero() && !w.To.IsZero() && !w.To.After(w.From) {
		return nil, ErrInvalidWindow
	}

	c, err := s.authorize(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}

	snap, err := s.stores.Snapshots.GetSnapshot(ctx, campaignID)
	if errors.Is(err, domain.ErrNotFound) {
		snap, err = s.recompute(ctx, campaignID)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	events, err := s.events(ctx, campaignID, w)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	return &domain.CampaignAnalyticsReport{
		CampaignName:              c.Name,
		Subject:                   c.Subject,
		CampaignAnalyticsSnapshot: *snap,
		Hourly:                    HourlyBreakdown(events),
		Devices:                   DeviceBreakdown(events),
		Locations:                 LocationBreakdown(events),
	}, nil
}

func (s *Service) events(ctx context.Context, campaignID int64, w Window) ([]domain.EngagementEvent, error) {
	if w.IsZero() {
		return s.stores.Events.FindByCampaign(ctx, campaignID)
	}
	to := w.To
	if to.IsZero() {
		to = s.now().Add(time.Minute)
	}
	return s.stores.Events.FindByCampaignAndTimeRange(ctx, campaignID, w.From, to)
}

func (s *Service) authorize(ctx context.Context, ownerID string, campaignID int64) (*domain.Campaign, error) {
	c, err := s.stores.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign %d: %w", campaignID, err)
	}
	if c.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}
	return c, nil
}
