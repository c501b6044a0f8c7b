package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// QueueAPI is the subset of the SQS client used by Publisher and Consumer.
type QueueAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// HitKind names the tracking endpoint a queued hit came from.
type HitKind string

const (
	HitOpen        HitKind = "open"
	HitClick       HitKind = "click"
	HitUnsubscribe HitKind = "unsubscribe"
)

// Hit is a tracking request captured at the edge for later ingestion.
type Hit struct {
	Kind       HitKind            `json:"kind"`
	TrackingID string             `json:"tracking_id,omitempty"`
	Token      string             `json:"token,omitempty"`
	Meta       domain.RequestMeta `json:"meta"`
}

type Publisher struct {
	client   QueueAPI
	queueURL string
	timeout  time.Duration
}

func NewPublisher(client QueueAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, timeout: 5 * time.Second}
}

// Publish sends one hit and waits for SQS to accept it.
func (p *Publisher) Publish(ctx context.Context, h Hit) error {
	body, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal hit: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		observability.QueueMessages.WithLabelValues("publish", "error").Inc()
		return fmt.Errorf("publish %s hit: %w", h.Kind, err)
	}
	observability.QueueMessages.WithLabelValues("publish", "ok").Inc()
	return nil
}

// PublishAsync sends the hit in the background so the tracking response is
// never held up by the queue. Failures are logged and the hit is lost.
func (p *Publisher) PublishAsync(h Hit) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Publish(ctx, h); err != nil {
			logger.Error("tracking hit dropped", "kind", string(h.Kind), "error", err)
		}
	}()
}

// AsyncIngestor answers tracking requests at the edge and defers storage to
// the queue consumer. Tokens are decoded locally so bad links are rejected
// and clicks redirect without touching any store.
type AsyncIngestor struct {
	pub *Publisher
}

func NewAsyncIngestor(pub *Publisher) *AsyncIngestor { return &AsyncIngestor{pub: pub} }

var _ Ingestor = (*AsyncIngestor)(nil)

func (a *AsyncIngestor) RecordOpen(_ context.Context, trackingID string, meta domain.RequestMeta) error {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil
	}
	a.pub.PublishAsync(Hit{Kind: HitOpen, TrackingID: trackingID, Meta: meta})
	return nil
}

func (a *AsyncIngestor) RecordClick(_ context.Context, token string, meta domain.RequestMeta) (string, error) {
	tok, err := Decode(token)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(tok.Payload)
	if !Redirectable(target) {
		return "", domain.ErrMissingTarget
	}
	a.pub.PublishAsync(Hit{Kind: HitClick, Token: token, Meta: meta})
	return target, nil
}

// RecordUnsubscribe publishes synchronously: the confirmation page is only
// shown once the request is durably queued.
func (a *AsyncIngestor) RecordUnsubscribe(ctx context.Context, token string, meta domain.RequestMeta) error {
	if _, err := Decode(token); err != nil {
		return err
	}
	return a.pub.Publish(ctx, Hit{Kind: HitUnsubscribe, Token: token, Meta: meta})
}
