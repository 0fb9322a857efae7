package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Scheme string
	Host   string
	Port   int

	// Credentials
	Username string
	Password string

	// HTTP settings
	Timeout     time.Duration // connect and response-header timeout, not a body deadline
	HTTPRetries int
	RateLimit   float64

	// Export poll policy
	Poll PollPolicy

	// API settings
	BaseURL string

	Debug bool
}

// PollPolicy bounds the wait for an asynchronous export.
type PollPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxElapsed of zero means no time limit.
	MaxElapsed time.Duration
	// MaxAttempts of zero means no attempt limit.
	MaxAttempts int
}

// DefaultPollPolicy returns the export poll policy used when nothing is configured
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      1.5,
		MaxElapsed:      10 * time.Minute,
		MaxAttempts:     120,
	}
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Scheme:      "http",
		Host:        "localhost",
		Port:        8080,
		Timeout:     60 * time.Second,
		HTTPRetries: 3,
		Poll:        DefaultPollPolicy(),
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if scheme := os.Getenv("CVAT_SCHEME"); scheme != "" {
		c.Scheme = scheme
	}

	if host := os.Getenv("CVAT_HOST"); host != "" {
		c.Host = host
	}

	if port := os.Getenv("CVAT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}

	if user := os.Getenv("CVAT_USER"); user != "" {
		c.Username = user
	}

	if password := os.Getenv("PASS"); password != "" {
		c.Password = password
	}

	if timeout := os.Getenv("CVAT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Timeout = d
		}
	}

	if retries := os.Getenv("CVAT_HTTP_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			c.HTTPRetries = r
		}
	}

	if limit := os.Getenv("CVAT_RATE_LIMIT"); limit != "" {
		if l, err := strconv.ParseFloat(limit, 64); err == nil {
			c.RateLimit = l
		}
	}

	if interval := os.Getenv("CVAT_POLL_INITIAL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Poll.InitialInterval = d
		}
	}

	if interval := os.Getenv("CVAT_POLL_MAX_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Poll.MaxInterval = d
		}
	}

	if elapsed := os.Getenv("CVAT_POLL_MAX_ELAPSED"); elapsed != "" {
		if d, err := time.ParseDuration(elapsed); err == nil {
			c.Poll.MaxElapsed = d
		}
	}

	if attempts := os.Getenv("CVAT_POLL_MAX_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			c.Poll.MaxAttempts = a
		}
	}

	if _, exists := os.LookupEnv("DEBUG"); exists {
		c.Debug = true
	}
}

// SetBaseURL sets the base URL based on the configured scheme, host and port
func (c *Config) SetBaseURL() {
	c.BaseURL = fmt.Sprintf("%s://%s:%d/api/v1", c.Scheme, c.Host, c.Port)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %s", c.Scheme)
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", c.Port)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %s", c.Timeout)
	}

	if c.HTTPRetries < 1 {
		return fmt.Errorf("HTTP retries must be at least 1, got: %d", c.HTTPRetries)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative, got: %g", c.RateLimit)
	}

	return c.Poll.Validate()
}

// Validate checks that the policy terminates and backs off sensibly
func (p PollPolicy) Validate() error {
	if p.InitialInterval <= 0 {
		return fmt.Errorf("poll initial interval must be positive, got: %s", p.InitialInterval)
	}

	if p.MaxInterval < p.InitialInterval {
		return fmt.Errorf("poll max interval (%s) must not be below the initial interval (%s)", p.MaxInterval, p.InitialInterval)
	}

	if p.Multiplier < 1 {
		return fmt.Errorf("poll multiplier must be at least 1, got: %g", p.Multiplier)
	}

	if p.MaxElapsed < 0 || p.MaxAttempts < 0 {
		return fmt.Errorf("poll limits must be non-negative")
	}

	if p.MaxElapsed == 0 && p.MaxAttempts == 0 {
		return fmt.Errorf("poll policy needs a max elapsed time or a max attempt count")
	}

	return nil
}
