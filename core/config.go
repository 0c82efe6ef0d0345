package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageSize          = 100
	MaxPageSize              = 500
	DefaultTokenRenewBefore  = 5 * time.Minute
	DefaultTokenTTL          = time.Hour
	DefaultRequestTimeout    = 30 * time.Second
	DefaultPollMaxAttempts   = 60
	DefaultPollInterval      = time.Second
	DefaultResponseBodyLimit = int64(10 << 20)
)

type PollConfig struct {
	MaxAttempts int `koanf:"max_attempts" mapstructure:"max_attempts"`
	IntervalMS  int `koanf:"interval_ms" mapstructure:"interval_ms"`
}

type Config struct {
	ServiceName             string     `koanf:"service_name" mapstructure:"service_name"`
	PageSize                int        `koanf:"page_size" mapstructure:"page_size"`
	MaxPageSize             int        `koanf:"max_page_size" mapstructure:"max_page_size"`
	RequestTimeoutSeconds   int        `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	ResponseBodyLimitBytes  int64      `koanf:"response_body_limit_bytes" mapstructure:"response_body_limit_bytes"`
	TokenRenewBeforeSeconds int        `koanf:"token_renew_before_seconds" mapstructure:"token_renew_before_seconds"`
	DefaultTokenTTLSeconds  int        `koanf:"default_token_ttl_seconds" mapstructure:"default_token_ttl_seconds"`
	Poll                    PollConfig `koanf:"poll" mapstructure:"poll"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:             "acumatica",
		PageSize:                DefaultPageSize,
		MaxPageSize:             MaxPageSize,
		RequestTimeoutSeconds:   int(DefaultRequestTimeout / time.Second),
		ResponseBodyLimitBytes:  DefaultResponseBodyLimit,
		TokenRenewBeforeSeconds: int(DefaultTokenRenewBefore / time.Second),
		DefaultTokenTTLSeconds:  int(DefaultTokenTTL / time.Second),
		Poll: PollConfig{
			MaxAttempts: DefaultPollMaxAttempts,
			IntervalMS:  int(DefaultPollInterval / time.Millisecond),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("core: page_size must be positive")
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("core: max_page_size must be positive")
	}
	if c.PageSize > c.MaxPageSize {
		return fmt.Errorf("core: page_size %d exceeds max_page_size %d", c.PageSize, c.MaxPageSize)
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("core: request_timeout_seconds must not be negative")
	}
	if c.TokenRenewBeforeSeconds < 0 {
		return fmt.Errorf("core: token_renew_before_seconds must not be negative")
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("core: poll.max_attempts must be positive")
	}
	if c.Poll.IntervalMS < 0 {
		return fmt.Errorf("core: poll.interval_ms must not be negative")
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) TokenRenewBefore() time.Duration {
	return time.Duration(c.TokenRenewBeforeSeconds) * time.Second
}

func (c Config) DefaultTokenTTL() time.Duration {
	return time.Duration(c.DefaultTokenTTLSeconds) * time.Second
}

func (c Config) PollOptions() PollOptions {
	return PollOptions{
		MaxAttempts: c.Poll.MaxAttempts,
		Interval:    time.Duration(c.Poll.IntervalMS) * time.Millisecond,
	}
}
