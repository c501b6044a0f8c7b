package mailer

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends through the SES v2 API.
type SESMailer struct {
	client sesAPI
	// ConfigurationSet is attached to every message when set.
	ConfigurationSet string
}

// NewSESMailer creates a mailer from a loaded AWS config.
func NewSESMailer(cfg aws.Config) *SESMailer {
	return &SESMailer{client: sesv2.NewFromConfig(cfg)}
}

func (s *SESMailer) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if msg.To == "" {
		return &domain.TransportError{CampaignID: msg.CampaignID, RecipientID: msg.RecipientID, Err: errors.New("no recipient address")}
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(strconv.FormatInt(msg.CampaignID, 10))},
			{Name: aws.String("recipient_id"), Value: aws.String(strconv.FormatInt(msg.RecipientID, 10))},
		},
	}
	if msg.ReplyTo != "" {
		in.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if s.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(s.ConfigurationSet)
	}

	out, err := s.client.SendEmail(ctx, in)
	if err != nil {
		return &domain.TransportError{CampaignID: msg.CampaignID, RecipientID: msg.RecipientID, Err: err}
	}

	logger.Debug("ses accepted message", "to", msg.To, "message_id", aws.ToString(out.MessageId))
	return nil
}
