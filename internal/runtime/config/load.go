package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// RootKey is the section the settings live under in configuration files and
// the prefix of their environment overrides (SENTRY_DSN, SENTRY_ENVIRONMENT...).
const RootKey = "sentry"

// Load reads the configuration file at path through viper. Environment
// variables override file values. Presence of the mandatory keys is tracked so
// Validate can tell an explicitly empty dsn from a missing one.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, RootKey+".")

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return decode(v, RootKey+"."), nil
}

// FromMap builds a Config from already decoded settings such as a parsed
// configuration section. Keys are the snake_case names without the root key.
func FromMap(settings map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v, "")
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("merge settings: %w", err)
	}
	return decode(v, ""), nil
}

func setDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+ConsoleListenerKey, false)
	v.SetDefault(prefix+RequestListenerKey, false)
	v.SetDefault(prefix+UserListenerKey, false)
	v.SetDefault(prefix+MessengerResetterKey, false)
	v.SetDefault(prefix+"runtime_mode", DefaultRuntimeMode)
	v.SetDefault(prefix+"send_timeout", DefaultSendTimeout)
	v.SetDefault(prefix+"flush_timeout", DefaultFlushTimeout)
	v.SetDefault(prefix+"failure_topic", DefaultFailureTopic)
}

func decode(v *viper.Viper, prefix string) *Config {
	key := func(name string) string { return prefix + name }

	c := &Config{
		DSN:         v.GetString(key("dsn")),
		Environment: v.GetString(key("environment")),
		ProjectDir:  v.GetString(key("project_dir")),
		CacheDir:    v.GetString(key("cache_dir")),
		SourceDir:   v.GetString(key("source_dir")),
		VendorDir:   v.GetString(key("vendor_dir")),
		AppVersion:  v.GetString(key("app_version")),

		ConsoleListener:   v.GetBool(key(ConsoleListenerKey)),
		RequestListener:   v.GetBool(key(RequestListenerKey)),
		UserListener:      v.GetBool(key(UserListenerKey)),
		MessengerResetter: v.GetBool(key(MessengerResetterKey)),

		FrameworkEnvironment: v.GetString(key("framework_environment")),
		RuntimeMode:          v.GetString(key("runtime_mode")),
		SendTimeout:          v.GetDuration(key("send_timeout")),
		FlushTimeout:         v.GetDuration(key("flush_timeout")),

		FailureTransport:   v.GetString(key("failure_transport")),
		FailureTopic:       v.GetString(key("failure_topic")),
		KafkaBrokers:       v.GetStringSlice(key("kafka_brokers")),
		RabbitMQURL:        v.GetString(key("rabbitmq_url")),
		NATSURL:            v.GetString(key("nats_url")),
		HTTPPublisherURL:   v.GetString(key("http_publisher_url")),
		AWSRegion:          v.GetString(key("aws_region")),
		AWSAccountID:       v.GetString(key("aws_account_id")),
		AWSAccessKeyID:     v.GetString(key("aws_access_key_id")),
		AWSSecretAccessKey: v.GetString(key("aws_secret_access_key")),
		AWSEndpoint:        v.GetString(key("aws_endpoint")),

		MetricsEnabled: v.GetBool(key("metrics_enabled")),
	}

	for _, name := range RequiredSettings {
		if v.IsSet(key(name)) {
			c.markPresent(name)
		}
	}
	return c
}
