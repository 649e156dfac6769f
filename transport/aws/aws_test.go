package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/sentryflow/internal/runtime/config"
	"github.com/drblury/sentryflow/transport"
)

func stubLoader(t *testing.T) {
	t.Helper()
	original := DefaultConfigLoader
	t.Cleanup(func() { DefaultConfigLoader = original })
	DefaultConfigLoader = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var opts awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&opts))
		}
		return aws.Config{Region: opts.Region, Credentials: opts.Credentials}, nil
	}
}

func capturePublisher(t *testing.T) *sns.PublisherConfig {
	t.Helper()
	original := PublisherFactory
	t.Cleanup(func() { PublisherFactory = original })

	captured := &sns.PublisherConfig{}
	PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		*captured = cfg
		return &mockPublisher{}, nil
	}
	return captured
}

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
}

func TestBuildWithStaticCredentials(t *testing.T) {
	stubLoader(t)
	captured := capturePublisher(t)

	pub, err := Build(context.Background(), &config.Config{
		AWSRegion:          "eu-central-1",
		AWSAccountID:       "123456789012",
		AWSAccessKeyID:     "AKIA",
		AWSSecretAccessKey: "secret",
	}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.IsType(t, &mockPublisher{}, pub)

	assert.Equal(t, "eu-central-1", captured.AWSConfig.Region)
	assert.Empty(t, captured.OptFns)
	creds, err := captured.AWSConfig.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)

	arn, err := captured.TopicResolver.ResolveTopic(context.Background(), "failed")
	require.NoError(t, err)
	assert.Equal(t, sns.TopicArn("arn:aws:sns:eu-central-1:123456789012:failed"), arn)
}

func TestBuildWithLocalStackEndpoint(t *testing.T) {
	stubLoader(t)
	captured := capturePublisher(t)

	_, err := Build(context.Background(), &config.Config{
		AWSRegion:   "us-east-1",
		AWSEndpoint: "http://localhost:4566",
	}, watermill.NopLogger{})
	require.NoError(t, err)

	require.Len(t, captured.OptFns, 1)
	var opts amazonsns.Options
	captured.OptFns[0](&opts)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *opts.BaseEndpoint)

	arn, err := captured.TopicResolver.ResolveTopic(context.Background(), "failed")
	require.NoError(t, err)
	assert.Contains(t, string(arn), ":000000000000:failed")
}

func TestBuildErrors(t *testing.T) {
	t.Run("requires region", func(t *testing.T) {
		_, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "region is required")
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		_, err := Build(context.Background(), &config.Config{AWSRegion: "us-east-1", AWSEndpoint: "://bad"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "parse endpoint")
	})

	t.Run("config loader fails", func(t *testing.T) {
		original := DefaultConfigLoader
		defer func() { DefaultConfigLoader = original }()
		DefaultConfigLoader = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("no credentials")
		}

		_, err := Build(context.Background(), &config.Config{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "no credentials")
	})
}

func TestResolveAccountID(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		expected string
	}{
		{"plain", &config.Config{AWSAccountID: "123456789012"}, "123456789012"},
		{"quoted", &config.Config{AWSAccountID: `"123456789012"`}, "123456789012"},
		{"localstack empty", &config.Config{AWSEndpoint: "http://localhost:4566"}, localstackAccountID},
		{"localstack malformed", &config.Config{AWSAccountID: "42", AWSEndpoint: "http://localhost:4566"}, localstackAccountID},
		{"localstack valid", &config.Config{AWSAccountID: "123456789012", AWSEndpoint: "http://localhost:4566"}, "123456789012"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveAccountID(tt.cfg, watermill.NopLogger{}))
		})
	}
}

type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error                                             { return nil }
