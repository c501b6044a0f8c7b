package tracking

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue is an in-memory QueueAPI.
type fakeQueue struct {
	mu       sync.Mutex
	pending  []types.Message
	sent     []string
	deleted  []string
	sendErr  error
	received chan struct{}
}

func newFakeQueue() *fakeQueue { return &fakeQueue{received: make(chan struct{}, 16)} }

func (q *fakeQueue) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return nil, q.sendErr
	}
	q.sent = append(q.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (q *fakeQueue) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
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
	defer func() { q.received <- struct{}{} }()
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (q *fakeQueue) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (q *fakeQueue) sentHits(t *testing.T) []Hit {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Hit
	for _, body := range q.sent {
		var h Hit
		require.NoError(t, json.Unmarshal([]byte(body), &h))
		out = append(out, h)
	}
	return out
}

func TestAsyncIngestorClick(t *testing.T) {
	q := newFakeQueue()
	ing := NewAsyncIngestor(NewPublisher(q, "https://sqs.test/q"))
	ctx := context.Background()

	token := Encode(1, 2, "https://example.com/x", time.Now())
	target, err := ing.RecordClick(ctx, token, domain.RequestMeta{UserAgent: "Gmail"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", target)

	assert.Eventually(t, func() bool { return len(q.sentHits(t)) == 1 }, time.Second, 5*time.Millisecond)
	h := q.sentHits(t)[0]
	assert.Equal(t, HitClick, h.Kind)
	assert.Equal(t, token, h.Token)
	assert.Equal(t, "Gmail", h.Meta.UserAgent)

	_, err = ing.RecordClick(ctx, "%%%", domain.RequestMeta{})
	assert.True(t, domain.IsInvalidToken(err))
	_, err = ing.RecordClick(ctx, Encode(1, 2, "", time.Now()), domain.RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrMissingTarget)
}

func TestAsyncIngestorUnsubscribeIsSynchronous(t *testing.T) {
	q := newFakeQueue()
	ing := NewAsyncIngestor(NewPublisher(q, "q"))
	ctx := context.Background()

	require.NoError(t, ing.RecordUnsubscribe(ctx, Encode(1, 2, "", time.Now()), domain.RequestMeta{}))
	require.Len(t, q.sentHits(t), 1)

	q.sendErr = errors.New("sqs down")
	assert.Error(t, ing.RecordUnsubscribe(ctx, Encode(1, 2, "", time.Now()), domain.RequestMeta{}))
	assert.True(t, domain.IsInvalidToken(ing.RecordUnsubscribe(ctx, "%%%", domain.RequestMeta{})))
}

func TestAsyncIngestorOpen(t *testing.T) {
	q := newFakeQueue()
	ing := NewAsyncIngestor(NewPublisher(q, "q"))

	require.NoError(t, ing.RecordOpen(context.Background(), "  ", domain.RequestMeta{}))
	require.NoError(t, ing.RecordOpen(context.Background(), "pix-9", domain.RequestMeta{}))
	assert.Eventually(t, func() bool {
		hits := q.sentHits(t)
		return len(hits) == 1 && hits[0].TrackingID == "pix-9"
	}, time.Second, 5*time.Millisecond)
}

func TestConsumerHandle(t *testing.T) {
	body := func(h Hit) string {
		b, _ := json.Marshal(h)
		return string(b)
	}

	tests := []struct {
		name    string
		ing     *stubIngestor
		body    string
		wantErr bool
	}{
		{"open", &stubIngestor{}, body(Hit{Kind: HitOpen, TrackingID: "p"}), false},
		{"store failure retries", &stubIngestor{openErr: errors.New("db down")}, body(Hit{Kind: HitOpen, TrackingID: "p"}), true},
		{"click store failure retries", &stubIngestor{target: "https://example.com", clickErr: errors.New("insert click: db down")}, body(Hit{Kind: HitClick, Token: "t"}), true},
		{"bad click token dropped", &stubIngestor{clickErr: &domain.InvalidTokenError{Reason: "x"}}, body(Hit{Kind: HitClick, Token: "t"}), false},
		{"unknown recipient dropped", &stubIngestor{unsubErr: domain.ErrNotFound}, body(Hit{Kind: HitUnsubscribe, Token: "t"}), false},
		{"malformed dropped", &stubIngestor{}, "{not json", false},
		{"unknown kind dropped", &stubIngestor{}, body(Hit{Kind: "bounce"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConsumer(newFakeQueue(), "q", tt.ing)
			err := c.Handle(context.Background(), tt.body)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConsumerPollDeletesHandledMessages(t *testing.T) {
	q := newFakeQueue()
	ing := &stubIngestor{}
	good, _ := json.Marshal(Hit{Kind: HitOpen, TrackingID: "pix-1"})
	q.pending = []types.Message{
		{Body: aws.String(string(good)), ReceiptHandle: aws.String("r-1")},
	}

	c := NewConsumer(q, "q", ing)
	c.Start(context.Background())
	select {
	case <-q.received:
	case <-time.After(time.Second):
		t.Fatal("consumer did not poll")
	}
	c.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Equal(t, []string{"r-1"}, q.deleted)
	assert.Equal(t, "pix-1", ing.lastID)
}

func TestConsumerKeepsFailedMessages(t *testing.T) {
	q := newFakeQueue()
	ing := &stubIngestor{openErr: errors.New("db down")}
	good, _ := json.Marshal(Hit{Kind: HitOpen, TrackingID: "pix-1"})
	q.pending = []types.Message{{Body: aws.String(string(good)), ReceiptHandle: aws.String("r-1")}}

	c := NewConsumer(q, "q", ing)
	c.Start(context.Background())
	<-q.received
	c.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Empty(t, q.deleted)
}
