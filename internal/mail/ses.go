package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// SESChannel delivers email through Amazon SES v2.
type SESChannel struct {
	client *sesv2.Client
	from   string
}

// NewSESChannel builds an SES delivery channel for the given region and
// sender address.
func NewSESChannel(ctx context.Context, region, from string) (*SESChannel, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESChannel{
		client: sesv2.NewFromConfig(cfg),
		from:   from,
	}, nil
}

// Send delivers a single plain-text message.
func (c *SESChannel) Send(ctx context.Context, to, subject, body string) error {
	_, err := c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	return nil
}

// LogChannel writes messages to the log instead of delivering them. Used in
// development and when mail is disabled in config.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates a log-only delivery channel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Send(_ context.Context, to, subject, body string) error {
	c.logger.Info("email (not delivered)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
