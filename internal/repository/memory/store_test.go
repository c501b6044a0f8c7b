package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionCampaign(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	id := s.AddCampaign(domain.Campaign{Name: "c"})
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	ok, err := s.TransitionCampaign(ctx, id, domain.CampaignSending, at, domain.CampaignSent)
	require.NoError(t, err)
	assert.False(t, ok, "draft is not in the from set")

	ok, err = s.TransitionCampaign(ctx, id, domain.CampaignSending, at, domain.CampaignDraft)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionCampaign(ctx, id, domain.CampaignSent, at)
	require.NoError(t, err)
	assert.True(t, ok)

	c, err := s.GetCampaign(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSent, c.Status)
	require.NotNil(t, c.SentAt)
	assert.Equal(t, at, *c.SentAt)

	_, err = s.TransitionCampaign(ctx, 999, domain.CampaignSent, at)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnsubscribeOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rid := s.AddRecipient(domain.Recipient{ListID: 1, Email: "a@example.com"})

	evt := func(trk string) *domain.EngagementEvent {
		return &domain.EngagementEvent{ID: trk, TrackingID: trk, Type: domain.EventUnsubscribed, RecipientID: rid, OccurredAt: time.Now()}
	}

	changed, err := s.Unsubscribe(ctx, evt("u1"))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Unsubscribe(ctx, evt("u2"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, s.Events(), 1)

	active, err := s.ListActiveRecipients(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = s.Unsubscribe(ctx, &domain.EngagementEvent{TrackingID: "u3", RecipientID: 404})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventQueries(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	now := base
	s.clock = func() time.Time { return now }
	add := func(trk string, cid int64, typ domain.EventType, at time.Time) {
		now = at
		require.NoError(t, s.Insert(ctx, &domain.EngagementEvent{ID: trk, TrackingID: trk, Type: typ, CampaignID: cid, RecipientID: 1, OccurredAt: at}))
	}
	add("a", 1, domain.EventSent, base)
	add("b", 1, domain.EventOpened, base.Add(time.Hour))
	add("c", 2, domain.EventSent, base.Add(2*time.Hour))

	assert.Error(t, s.Insert(ctx, &domain.EngagementEvent{TrackingID: "a"}), "tracking ids are unique")

	found, err := s.FindByTrackingID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.EventOpened, found.Type)
	_, err = s.FindByTrackingID(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in, err := s.FindByCampaignAndTimeRange(ctx, 1, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, in, 1, "the upper bound is exclusive")
	assert.Equal(t, "a", in[0].TrackingID)

	counts, err := s.CountsByType(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[domain.EventType]int{domain.EventSent: 1, domain.EventOpened: 1}, counts)

	opened, err := s.ExistsForRecipient(ctx, 1, 1, domain.EventOpened)
	require.NoError(t, err)
	assert.True(t, opened)

	ids, err := s.CampaignsWithEventsSince(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestCampaignsWithEventsSinceUsesInsertTime(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.clock = func() time.Time { return now }

	require.NoError(t, s.Insert(ctx, &domain.EngagementEvent{ID: "a", TrackingID: "a", Type: domain.EventSent, CampaignID: 1, OccurredAt: base}))

	// queued for ten minutes before being stored
	now = base.Add(10 * time.Minute)
	require.NoError(t, s.Insert(ctx, &domain.EngagementEvent{ID: "b", TrackingID: "b", Type: domain.EventOpened, CampaignID: 2, OccurredAt: base.Add(time.Minute)}))

	ids, err := s.CampaignsWithEventsSince(ctx, base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
}
