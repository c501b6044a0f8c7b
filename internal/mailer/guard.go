package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardConfig tunes the Guarded decorator.
type GuardConfig struct {
	RatePerSecond float64
	Burst         int
	// MaxWait bounds how long one send may wait for a token.
	MaxWait time.Duration
	// TripAfter consecutive failures opens the breaker.
	TripAfter uint32
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
}

func (c GuardConfig) withDefaults() GuardConfig {
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 14
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 2 * time.Second
	}
	if c.TripAfter == 0 {
		c.TripAfter = 10
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 20 * time.Second
	}
	return c
}

// Guarded throttles a Mailer to a token-bucket rate and stops calling it
// while it keeps failing.
type Guarded struct {
	next    Mailer
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	maxWait time.Duration
}

func NewGuarded(next Mailer, cfg GuardConfig) *Guarded {
	cfg = cfg.withDefaults()
	return &Guarded{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mailer",
			MaxRequests: 3,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= cfg.TripAfter },
		}),
		maxWait: cfg.MaxWait,
	}
}

func (g *Guarded) Send(ctx context.Context, msg domain.OutboundMessage) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	err := g.limiter.Wait(waitCtx)
	cancel()
	if err != nil {
		return &domain.TransportError{CampaignID: msg.CampaignID, RecipientID: msg.RecipientID, Err: fmt.Errorf("rate limited: %w", err)}
	}

	_, err = g.breaker.Execute(func() (interface{}, error) {
		return nil, g.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.TransportError{CampaignID: msg.CampaignID, RecipientID: msg.RecipientID, Err: err}
	}
	return err
}

// State reports the breaker state, for health output.
func (g *Guarded) State() string { return g.breaker.State().String() }
