// Package notify delivers plain-text email notifications through Amazon SES v2.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/JaimeStill/curator/pkg/awsclient"
)

// ErrNoRecipients indicates Send was called without any recipient.
var ErrNoRecipients = errors.New("no recipients")

// DeliveryResult identifies an accepted message.
type DeliveryResult struct {
	MessageID string
}

// System sends notification messages.
type System interface {
	Send(ctx context.Context, recipients []string, subject, body string) (*DeliveryResult, error)
}

// EmailAPI is the subset of the SES v2 client the sender uses.
type EmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type ses struct {
	client EmailAPI
	sender string
	logger *slog.Logger
}

// New creates an SES-backed sender that sends from the given address.
func New(client EmailAPI, sender string, logger *slog.Logger) System {
	return &ses{
		client: client,
		sender: sender,
		logger: logger.With("system", "notify"),
	}
}

// NewFromSession creates an SES-backed sender with a client built from session.
func NewFromSession(s *awsclient.Session, sender string, logger *slog.Logger) System {
	client := sesv2.NewFromConfig(s.Config, func(o *sesv2.Options) {
		o.BaseEndpoint = s.BaseEndpoint()
	})
	return New(client, sender, logger)
}

func (s *ses) Send(ctx context.Context, recipients []string, subject, body string) (*DeliveryResult, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	result := &DeliveryResult{MessageID: aws.ToString(out.MessageId)}
	s.logger.Info("notification sent", "subject", subject, "recipients", len(recipients), "message_id", result.MessageID)
	return result, nil
}

type local struct {
	logger *slog.Logger
}

// NewLocal returns a sender that logs messages instead of delivering them.
func NewLocal(logger *slog.Logger) System {
	return &local{logger: logger.With("system", "notify", "mode", "local")}
}

func (l *local) Send(_ context.Context, recipients []string, subject, body string) (*DeliveryResult, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	l.logger.Info("notification", "to", recipients, "subject", subject, "body", body)
	return &DeliveryResult{MessageID: "local"}, nil
}
