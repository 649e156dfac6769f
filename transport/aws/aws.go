// Package aws publishes failed messages to SNS topics. Topic ARNs are derived
// from the account ID and region; a custom endpoint targets LocalStack.
package aws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/drblury/sentryflow/transport"
)

// TransportName is the name used to register this publisher.
const TransportName = "aws"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory allows overriding the topic resolver creation for testing.
var TopicResolverFactory = sns.NewGenerateArnTopicResolver

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sns.NewPublisher(cfg, logger)
}

func init() {
	transport.Register(TransportName, Build)
}

// Build creates a new SNS publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if cfg.GetAWSRegion() == "" {
		return nil, errors.New("aws: region is required")
	}

	endpoint, err := endpointURL(cfg.GetAWSEndpoint())
	if err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	accountID := resolveAccountID(cfg, logger)
	topicResolver, err := TopicResolverFactory(accountID, awsCfg.Region)
	if err != nil {
		return nil, fmt.Errorf("aws: create topic resolver: %w", err)
	}

	logger.Info("Creating SNS failure publisher", watermill.LogFields{
		"account_id":      accountID,
		"region":          awsCfg.Region,
		"custom_endpoint": endpoint != nil,
	})

	publisherConfig := sns.PublisherConfig{
		TopicResolver: topicResolver,
		AWSConfig:     awsCfg,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}
	if endpoint != nil {
		base := endpoint.String()
		publisherConfig.OptFns = append(publisherConfig.OptFns, func(o *amazonsns.Options) {
			o.BaseEndpoint = aws.String(base)
		})
	}

	return PublisherFactory(publisherConfig, logger)
}

func loadAWSConfig(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (aws.Config, error) {
	region := cfg.GetAWSRegion()
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	accessKey, secretKey := cfg.GetAWSAccessKeyID(), cfg.GetAWSSecretAccessKey()
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(accessKey, secretKey)))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS config", err, watermill.LogFields{"region": region})
		return aws.Config{}, fmt.Errorf("aws: load config: %w", err)
	}
	// loaders replaced in tests may ignore the options
	awsCfg.Region = region
	return awsCfg, nil
}

// resolveAccountID falls back to the LocalStack account when a custom endpoint
// is configured and the account ID is missing or malformed.
func resolveAccountID(cfg transport.Config, logger watermill.LoggerAdapter) string {
	accountID := strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	if cfg.GetAWSEndpoint() == "" {
		return accountID
	}
	if len(accountID) != awsAccountIDLength {
		logger.Info("Using LocalStack account ID", watermill.LogFields{"configured": accountID})
		return localstackAccountID
	}
	return accountID
}

func endpointURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("aws: parse endpoint: %w", err)
	}
	return parsed, nil
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Source:          "sentryflow",
		}, nil
	})
}
