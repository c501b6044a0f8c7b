// Package memory provides an in-process implementation of every store the
// services depend on. It backs unit tests and single-node development runs
// (storage type "memory").
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Store keeps campaigns, recipients, events and snapshots in maps guarded by
// one mutex. Returned values are copies.
type Store struct {
	mu         sync.RWMutex
	campaigns  map[int64]*domain.Campaign
	recipients map[int64]*domain.Recipient
	events     []domain.EngagementEvent
	ingested   []time.Time
	byTracking map[string]int
	snapshots  map[int64]domain.CampaignAnalyticsSnapshot
	nextID     int64
	clock      func() time.Time
}

func NewStore() *Store {
	return &Store{
		campaigns:  make(map[int64]*domain.Campaign),
		recipients: make(map[int64]*domain.Recipient),
		byTracking: make(map[string]int),
		snapshots:  make(map[int64]domain.CampaignAnalyticsSnapshot),
		clock:      time.Now,
	}
}

// AddCampaign stores c, assigning an id when c.ID is zero.
func (s *Store) AddCampaign(c domain.Campaign) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	}
	if c.Status == "" {
		c.Status = domain.CampaignDraft
	}
	s.campaigns[c.ID] = &c
	return c.ID
}

// AddRecipient stores r, assigning an id when r.ID is zero.
func (s *Store) AddRecipient(r domain.Recipient) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	}
	if r.Status == "" {
		r.Status = domain.RecipientActive
	}
	s.recipients[r.ID] = &r
	return r.ID
}

// Events returns a copy of the whole ledger in insertion order.
func (s *Store) Events() []domain.EngagementEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EngagementEvent(nil), s.events...)
}

// --- campaigns ---

func (s *Store) GetCampaign(_ context.Context, id int64) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) TransitionCampaign(_ context.Context, id int64, to domain.CampaignStatus, at time.Time, from ...domain.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if len(from) > 0 && !statusIn(c.Status, from) {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	if to == domain.CampaignSent {
		sentAt := at
		c.SentAt = &sentAt
	}
	return true, nil
}

func statusIn(s domain.CampaignStatus, set []domain.CampaignStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// --- recipients ---

func (s *Store) GetRecipient(_ context.Context, id int64) (*domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListActiveRecipients(_ context.Context, listID int64) ([]domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Recipient
	for _, r := range s.recipients {
		if r.ListID == listID && r.Status == domain.RecipientActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Unsubscribe(_ context.Context, evt *domain.EngagementEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[evt.RecipientID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if r.Status == domain.RecipientUnsubscribed {
		return false, nil
	}
	if err := s.appendLocked(evt); err != nil {
		return false, err
	}
	at := evt.OccurredAt
	r.Status = domain.RecipientUnsubscribed
	r.UnsubscribedAt = &at
	return true, nil
}

// --- events ---

func (s *Store) Insert(_ context.Context, e *domain.EngagementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(e)
}

func (s *Store) appendLocked(e *domain.EngagementEvent) error {
	if e.TrackingID != "" {
		if _, dup := s.byTracking[e.TrackingID]; dup {
			return fmt.Errorf("duplicate tracking id %s", e.TrackingID)
		}
		s.byTracking[e.TrackingID] = len(s.events)
	}
	s.events = append(s.events, *e)
	s.ingested = append(s.ingested, s.clock())
	return nil
}

func (s *Store) FindByTrackingID(_ context.Context, trackingID string) (*domain.EngagementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byTracking[trackingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e := s.events[idx]
	return &e, nil
}

func (s *Store) ExistsForRecipient(_ context.Context, campaignID, recipientID int64, t domain.EventType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.CampaignID == campaignID && e.RecipientID == recipientID && e.Type == t {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindByCampaign(_ context.Context, campaignID int64) ([]domain.EngagementEvent, error) {
	return s.filter(func(e *domain.EngagementEvent) bool { return e.CampaignID == campaignID }), nil
}

// FindByCampaignAndTimeRange returns events with from <= OccurredAt < to.
func (s *Store) FindByCampaignAndTimeRange(_ context.Context, campaignID int64, from, to time.Time) ([]domain.EngagementEvent, error) {
	return s.filter(func(e *domain.EngagementEvent) bool {
		return e.CampaignID == campaignID && !e.OccurredAt.Before(from) && e.OccurredAt.Before(to)
	}), nil
}

func (s *Store) CountsByType(_ context.Context, campaignID int64) (map[domain.EventType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.EventType]int)
	for _, e := range s.events {
		if e.CampaignID == campaignID {
			counts[e.Type]++
		}
	}
	return counts, nil
}

// CampaignsWithEventsSince selects by insert time, not OccurredAt, so hits
// that sat in the queue are still picked up.
func (s *Store) CampaignsWithEventsSince(_ context.Context, since time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]bool)
	var ids []int64
	for i, e := range s.events {
		if !s.ingested[i].Before(since) && !seen[e.CampaignID] {
			seen[e.CampaignID] = true
			ids = append(ids, e.CampaignID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) filter(keep func(*domain.EngagementEvent) bool) []domain.EngagementEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.EngagementEvent
	for i := range s.events {
		if keep(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}

// --- snapshots ---

func (s *Store) GetSnapshot(_ context.Context, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[campaignID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

func (s *Store) UpsertSnapshot(_ context.Context, snap domain.CampaignAnalyticsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.CampaignID] = snap
	return nil
}
