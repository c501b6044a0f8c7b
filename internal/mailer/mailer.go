// Package mailer delivers prepared campaign messages and renders their
// merge tags.
package mailer

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// Mailer delivers one message. Failures are *domain.TransportError.
type Mailer interface {
	Send(ctx context.Context, msg domain.OutboundMessage) error
}

// LogMailer logs messages instead of delivering them. It is the transport
// for local runs without SES credentials.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg domain.OutboundMessage) error {
	logger.Info("mail not delivered (log transport)",
		"to", msg.To,
		"subject", msg.Subject,
		"campaign_id", msg.CampaignID,
		"recipient_id", msg.RecipientID,
		"bytes", len(msg.HTML))
	return nil
}
