package tracking_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/repository/memory"
	"github.com/ignite/engagement-tracker/internal/service/engagement"
	"github.com/ignite/engagement-tracker/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneShotQueue hands out its messages once and records deletions.
type oneShotQueue struct {
	mu      sync.Mutex
	pending []types.Message
	deleted []string
	polled  chan struct{}
}

func (q *oneShotQueue) SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return &sqs.SendMessageOutput{}, nil
}

func (q *oneShotQueue) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	msgs := q.pending
	q.pending = nil
	q.mu.Unlock()
	if len(msgs) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
			return &sqs.ReceiveMessageOutput{}, nil
		}
	}
	defer func() { q.polled <- struct{}{} }()
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (q *oneShotQueue) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type brokenEvents struct {
	*memory.Store
}

func (brokenEvents) Insert(context.Context, *domain.EngagementEvent) error {
	return errors.New("db down")
}

type brokenCampaigns struct {
	*memory.Store
}

func (brokenCampaigns) GetCampaign(context.Context, int64) (*domain.Campaign, error) {
	return nil, errors.New("campaigns unavailable")
}

func TestConsumerReplaysClicksIntoStore(t *testing.T) {
	tests := []struct {
		name        string
		stores      func(st *memory.Store) engagement.Stores
		wantDeleted bool
		wantClicks  int
	}{
		{
			name: "recorded and deleted",
			stores: func(st *memory.Store) engagement.Stores {
				return engagement.Stores{Events: st, Campaigns: st, Recipients: st}
			},
			wantDeleted: true,
			wantClicks:  2,
		},
		{
			name: "insert failure kept for redelivery",
			stores: func(st *memory.Store) engagement.Stores {
				return engagement.Stores{Events: brokenEvents{st}, Campaigns: st, Recipients: st}
			},
		},
		{
			name: "campaign lookup failure kept for redelivery",
			stores: func(st *memory.Store) engagement.Stores {
				return engagement.Stores{Events: st, Campaigns: brokenCampaigns{st}, Recipients: st}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.NewStore()
			cid := st.AddCampaign(domain.Campaign{OwnerID: "org-1", ListID: 1, Name: "C1"})
			rid := st.AddRecipient(domain.Recipient{ListID: 1, Email: "r1@example.com"})
			svc := engagement.NewService(tt.stores(st))

			body, err := json.Marshal(tracking.Hit{
				Kind:  tracking.HitClick,
				Token: tracking.Encode(cid, rid, "https://example.com/a", time.Now()),
				Meta:  domain.RequestMeta{UserAgent: "Gmail", ReceivedAt: time.Now().Add(-time.Minute)},
			})
			require.NoError(t, err)

			c := tracking.NewConsumer(nil, "q", svc)
			handleErr := c.Handle(context.Background(), string(body))
			if tt.wantDeleted {
				assert.NoError(t, handleErr)
			} else {
				assert.Error(t, handleErr)
			}

			q := &oneShotQueue{
				pending: []types.Message{{Body: aws.String(string(body)), ReceiptHandle: aws.String("r-1")}},
				polled:  make(chan struct{}, 1),
			}
			c = tracking.NewConsumer(q, "q", svc)
			c.Start(context.Background())
			select {
			case <-q.polled:
			case <-time.After(time.Second):
				t.Fatal("consumer did not poll")
			}
			c.Stop()

			q.mu.Lock()
			defer q.mu.Unlock()
			if tt.wantDeleted {
				assert.Equal(t, []string{"r-1"}, q.deleted)
			} else {
				assert.Empty(t, q.deleted)
			}

			clicks := 0
			for _, e := range st.Events() {
				if e.Type == domain.EventClicked {
					clicks++
				}
			}
			assert.Equal(t, tt.wantClicks, clicks, "Handle and the poll loop each replay the hit once")
		})
	}
}
