package campaign_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/repository/memory"
	"github.com/ignite/engagement-tracker/internal/service/campaign"
	"github.com/ignite/engagement-tracker/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrg = "org-1"

// fakeMailer records messages and fails for addresses in reject.
type fakeMailer struct {
	mu     sync.Mutex
	sent   []domain.OutboundMessage
	reject map[string]bool
	onSend func(domain.OutboundMessage)
}

func (m *fakeMailer) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onSend != nil {
		m.onSend(msg)
	}
	if m.reject[msg.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutboundMessage(nil), m.sent...)
}

// mergeTags replaces {{ name }} with the bound value.
type mergeTags struct{}

func (mergeTags) Render(text string, vars map[string]interface{}) string {
	for k, v := range vars {
		text = strings.ReplaceAll(text, "{{ "+k+" }}", v.(string))
	}
	return text
}

type fixture struct {
	store  *memory.Store
	mailer *fakeMailer
	pool   *campaign.Pool
	svc    *campaign.Service
	cid    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	cid := st.AddCampaign(domain.Campaign{
		OwnerID: testOrg, ListID: 7, Name: "Launch",
		Subject: "Hi {{ first_name }}", SenderName: "Acme", SenderEmail: "news@acme.test",
		Content: `<html><body><p>Hello {{ first_name }}</p><a href="https://acme.test/p">Shop</a></body></html>`,
	})
	st.AddRecipient(domain.Recipient{ListID: 7, Email: "ann@example.com", FirstName: "Ann"})
	st.AddRecipient(domain.Recipient{ListID: 7, Email: "bob@example.com", FirstName: "Bob"})
	st.AddRecipient(domain.Recipient{ListID: 7, Email: "gone@example.com", Status: domain.RecipientUnsubscribed})
	st.AddRecipient(domain.Recipient{ListID: 8, Email: "other@example.com"})

	m := &fakeMailer{reject: map[string]bool{}}
	pool := campaign.NewPool(2, 4)
	svc := campaign.NewService(
		campaign.Stores{Campaigns: st, Recipients: st, Events: st},
		tracking.NewRewriter("https://t.acme.test"), m, mergeTags{}, pool)
	return &fixture{store: st, mailer: m, pool: pool, svc: svc, cid: cid}
}

func (f *fixture) status(t *testing.T) domain.CampaignStatus {
	t.Helper()
	c, err := f.store.GetCampaign(context.Background(), f.cid)
	require.NoError(t, err)
	return c.Status
}

func countType(events []domain.EngagementEvent, typ domain.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestDeliver(t *testing.T) {
	f := newFixture(t)
	f.mailer.reject["bob@example.com"] = true
	ctx := context.Background()

	c, err := f.store.GetCampaign(ctx, f.cid)
	require.NoError(t, err)
	_, err = f.store.TransitionCampaign(ctx, f.cid, domain.CampaignSending, time.Now())
	require.NoError(t, err)

	sent, bounced := f.svc.Deliver(ctx, *c)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, bounced)

	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "ann@example.com", msg.To)
	assert.Equal(t, "Acme <news@acme.test>", msg.From)
	assert.Equal(t, "Hi Ann", msg.Subject)
	assert.Contains(t, msg.HTML, "Hello Ann")
	assert.Contains(t, msg.HTML, "https://t.acme.test/tracking/click/")
	assert.NotContains(t, msg.HTML, `href="https://acme.test/p"`)
	assert.Contains(t, msg.HTML, "/tracking/unsubscribe?token=")

	events := f.store.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 2, countType(events, domain.EventSent), "every attempt gets a placeholder")
	assert.Equal(t, 1, countType(events, domain.EventBounced))
	for _, e := range events {
		if e.Type == domain.EventSent && e.RecipientID == msg.RecipientID {
			assert.Contains(t, msg.HTML, "/tracking/pixel/"+e.TrackingID, "SENT event carries the pixel id")
		}
	}

	assert.Equal(t, domain.CampaignSent, f.status(t))
	got, _ := f.store.GetCampaign(ctx, f.cid)
	assert.NotNil(t, got.SentAt)
}

func TestDeliverPixelOpensResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.store.GetCampaign(ctx, f.cid)
	f.svc.Deliver(ctx, *c)

	for _, e := range f.store.Events() {
		found, err := f.store.FindByTrackingID(ctx, e.TrackingID)
		require.NoError(t, err)
		assert.Equal(t, e.RecipientID, found.RecipientID)
	}
}

var pixelRe = regexp.MustCompile(`/tracking/pixel/([0-9a-f-]+)`)

func TestDeliverStoresPlaceholderBeforeSending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var resolved []int64
	f.mailer.onSend = func(msg domain.OutboundMessage) {
		m := pixelRe.FindStringSubmatch(msg.HTML)
		require.Len(t, m, 2)
		found, err := f.store.FindByTrackingID(ctx, m[1])
		require.NoError(t, err)
		assert.Equal(t, domain.EventSent, found.Type)
		resolved = append(resolved, found.RecipientID)
	}

	c, _ := f.store.GetCampaign(ctx, f.cid)
	sent, bounced := f.svc.Deliver(ctx, *c)
	assert.Equal(t, 2, sent)
	assert.Zero(t, bounced)
	assert.Len(t, resolved, 2)
}

type failingEvents struct {
	*memory.Store
}

func (failingEvents) Insert(context.Context, *domain.EngagementEvent) error {
	return errors.New("db down")
}

func TestDeliverSkipsWhenPlaceholderFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := campaign.NewService(
		campaign.Stores{Campaigns: f.store, Recipients: f.store, Events: failingEvents{f.store}},
		tracking.NewRewriter("https://t.acme.test"), f.mailer, mergeTags{}, f.pool)

	c, _ := f.store.GetCampaign(ctx, f.cid)
	sent, bounced := svc.Deliver(ctx, *c)
	assert.Zero(t, sent)
	assert.Zero(t, bounced)
	assert.Empty(t, f.mailer.messages(), "no mail goes out with a pixel that cannot resolve")
	assert.Empty(t, f.store.Events())
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pool.Start(context.Background()))

	require.NoError(t, f.svc.Send(context.Background(), testOrg, f.cid))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.pool.Stop(stopCtx)

	assert.Len(t, f.mailer.messages(), 2)
	assert.Equal(t, domain.CampaignSent, f.status(t))
}

func TestSendRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.pool.Start(ctx))
	defer f.pool.Stop(ctx)

	err := f.svc.Send(ctx, "org-2", f.cid)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	err = f.svc.Send(ctx, testOrg, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.store.TransitionCampaign(ctx, f.cid, domain.CampaignSent, time.Now())
	require.NoError(t, err)
	err = f.svc.Send(ctx, testOrg, f.cid)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.Empty(t, f.mailer.messages())
}

func TestSendPoolStoppedRollsBack(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Send(context.Background(), testOrg, f.cid)
	assert.ErrorIs(t, err, campaign.ErrPoolStopped)
	assert.Equal(t, domain.CampaignDraft, f.status(t))
}

func TestPool(t *testing.T) {
	ctx := context.Background()

	t.Run("queue full", func(t *testing.T) {
		p := campaign.NewPool(1, 1)
		require.NoError(t, p.Start(ctx))
		release := make(chan struct{})
		started := make(chan struct{})

		require.NoError(t, p.Submit(func(context.Context) { close(started); <-release }))
		<-started
		require.NoError(t, p.Submit(func(context.Context) {}))
		assert.ErrorIs(t, p.Submit(func(context.Context) {}), campaign.ErrQueueFull)

		close(release)
		p.Stop(ctx)
		assert.ErrorIs(t, p.Submit(func(context.Context) {}), campaign.ErrPoolStopped)
	})

	t.Run("stop drains queued jobs", func(t *testing.T) {
		p := campaign.NewPool(2, 8)
		require.NoError(t, p.Start(ctx))
		var mu sync.Mutex
		ran := 0
		for i := 0; i < 8; i++ {
			require.NoError(t, p.Submit(func(context.Context) {
				time.Sleep(time.Millisecond)
				mu.Lock()
				ran++
				mu.Unlock()
			}))
		}
		p.Stop(ctx)
		assert.Equal(t, 8, ran)
	})

	t.Run("panicking job does not kill the worker", func(t *testing.T) {
		p := campaign.NewPool(1, 2)
		require.NoError(t, p.Start(ctx))
		done := make(chan struct{})
		require.NoError(t, p.Submit(func(context.Context) { panic("boom") }))
		require.NoError(t, p.Submit(func(context.Context) { close(done) }))
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("second job did not run")
		}
		p.Stop(ctx)
	})
}
