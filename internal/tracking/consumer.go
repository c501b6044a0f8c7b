package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// Consumer long-polls the tracking queue and replays each hit into an
// Ingestor. Messages are deleted once handled or found unprocessable; store
// failures leave the message for redelivery.
type Consumer struct {
	client   QueueAPI
	queueURL string
	ing      Ingestor
	backoff  time.Duration

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewConsumer(client QueueAPI, queueURL string, ing Ingestor) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		ing:      ing,
		backoff:  5 * time.Second,
		done:     make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	logger.Info("tracking consumer started", "queue", c.queueURL)
	c.wg.Add(1)
	go c.poll(ctx)
}

// Stop ends polling and waits for the current batch to finish.
func (c *Consumer) Stop() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	defer c.wg.Done()
	// cancel the in-flight long poll on Stop
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("tracking queue receive failed", "error", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, msg := range out.Messages {
			// finish the batch with a context that survives Stop
			c.process(context.WithoutCancel(ctx), msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg types.Message) {
	if err := c.Handle(ctx, aws.ToString(msg.Body)); err != nil {
		observability.QueueMessages.WithLabelValues("consume", "retry").Inc()
		logger.Warn("tracking hit will be retried", "error", err)
		return
	}
	observability.QueueMessages.WithLabelValues("consume", "ok").Inc()
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		logger.Warn("tracking queue delete failed", "error", err)
	}
}

// Handle ingests one message body. It returns an error only when the hit
// should be redelivered; malformed bodies, bad tokens and unknown ids are
// logged and dropped.
func (c *Consumer) Handle(ctx context.Context, body string) error {
	var h Hit
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		logger.Warn("dropping malformed tracking hit", "error", err)
		return nil
	}

	var err error
	switch h.Kind {
	case HitOpen:
		err = c.ing.RecordOpen(ctx, h.TrackingID, h.Meta)
	case HitClick:
		_, err = c.ing.RecordClick(ctx, h.Token, h.Meta)
	case HitUnsubscribe:
		err = c.ing.RecordUnsubscribe(ctx, h.Token, h.Meta)
	default:
		logger.Warn("dropping tracking hit of unknown kind", "kind", string(h.Kind))
		return nil
	}

	if err == nil {
		return nil
	}
	if domain.IsInvalidToken(err) || errors.Is(err, domain.ErrMissingTarget) || errors.Is(err, domain.ErrNotFound) {
		logger.Info("dropping unprocessable tracking hit", "kind", string(h.Kind), "error", err)
		return nil
	}
	return err
}
