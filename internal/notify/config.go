// internal/notify/config.go
package notify

import (
	"fmt"
	"time"
)

const defaultPublishTimeout = 5 * time.Second

// Config captures the runtime parameters for the JetStream notifier.
type Config struct {
	URL            string        `mapstructure:"url"`
	Stream         string        `mapstructure:"stream"`
	SubjectRoot    string        `mapstructure:"subject_root"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// DefaultConfig initialises Config with defaults for optional fields.
func DefaultConfig() Config {
	return Config{
		Stream:         "LAUNCHPAD",
		SubjectRoot:    "launchpad",
		PublishTimeout: defaultPublishTimeout,
	}
}

// Validate ensures required fields are populated and durations are sane.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}
	if c.Stream == "" {
		return fmt.Errorf("NATS stream is required")
	}
	if c.SubjectRoot == "" {
		return fmt.Errorf("subject root cannot be empty")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("publish timeout must be positive")
	}
	return nil
}
