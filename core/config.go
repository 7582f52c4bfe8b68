package core

import (
	"fmt"
	"strings"
	"time"
)

// PollingConfig bounds the outgoing-payment polling loop.
type PollingConfig struct {
	MaxAttempts  int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	Interval     time.Duration `koanf:"interval" mapstructure:"interval"`
	InitialDelay time.Duration `koanf:"initial_delay" mapstructure:"initial_delay"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Polling     PollingConfig `koanf:"polling" mapstructure:"polling"`
	// PaymentTickInterval paces the continuous per-session payment loop.
	PaymentTickInterval time.Duration `koanf:"payment_tick_interval" mapstructure:"payment_tick_interval"`
	// DedupeCacheDuration is how long coalesced rotation/switch results stay
	// reusable.
	DedupeCacheDuration time.Duration `koanf:"dedupe_cache_duration" mapstructure:"dedupe_cache_duration"`
	// InteractionResultURL is the page the interaction tab is redirected to
	// once a flow settles; result, intent and errorCode are appended as query
	// parameters.
	InteractionResultURL string `koanf:"interaction_result_url" mapstructure:"interaction_result_url"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "monetization",
		Polling: PollingConfig{
			MaxAttempts:  10,
			Interval:     time.Second,
			InitialDelay: time.Second,
		},
		PaymentTickInterval:  time.Second,
		DedupeCacheDuration:  5 * time.Second,
		InteractionResultURL: "https://webmonetization.org/result",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Polling.MaxAttempts < 1 {
		return fmt.Errorf("core: polling max_attempts must be positive")
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("core: polling interval must be positive")
	}
	if c.Polling.InitialDelay < 0 {
		return fmt.Errorf("core: polling initial_delay must not be negative")
	}
	if c.PaymentTickInterval <= 0 {
		return fmt.Errorf("core: payment_tick_interval must be positive")
	}
	if c.DedupeCacheDuration <= 0 {
		return fmt.Errorf("core: dedupe_cache_duration must be positive")
	}
	if strings.TrimSpace(c.InteractionResultURL) == "" {
		return fmt.Errorf("core: interaction_result_url is required")
	}
	return nil
}
