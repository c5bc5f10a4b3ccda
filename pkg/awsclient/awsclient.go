// Package awsclient loads the shared AWS SDK configuration used by the
// schedule, notify, and functions gateways.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Session is a resolved AWS configuration plus the optional endpoint override.
type Session struct {
	Config   aws.Config
	endpoint string
}

// BaseEndpoint returns the endpoint override, or nil when clients should
// resolve their regional endpoint.
func (s *Session) BaseEndpoint() *string {
	if s.endpoint == "" {
		return nil
	}
	return aws.String(s.endpoint)
}

// Load resolves the AWS configuration. Static credentials are used when both
// keys are configured; otherwise the SDK default credential chain applies.
func Load(ctx context.Context, cfg *Config) (*Session, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.StaticCredentials() {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Session{Config: awsCfg, endpoint: cfg.Endpoint}, nil
}
