package dunning

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxRetries         = 4
	DefaultRetryIntervalHours = 72

	MinMaxRetries         = 1
	MaxMaxRetries         = 10
	MinRetryIntervalHours = 12
	MaxRetryIntervalHours = 168
)

var ErrInvalidConfig = errors.New("invalid dunning config")

// Config is the per-project dunning policy.
type Config struct {
	MaxRetries         int
	RetryIntervalHours int
	ToneSequence       []Tone
	CustomFromName     string
}

// DefaultConfig is applied when a project never saved a policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         DefaultMaxRetries,
		RetryIntervalHours: DefaultRetryIntervalHours,
		ToneSequence:       DefaultToneSequence(),
	}
}

// Validate checks bounds and tone names. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.MaxRetries < MinMaxRetries || c.MaxRetries > MaxMaxRetries {
		return fmt.Errorf("%w: max_retries must be between %d and %d", ErrInvalidConfig, MinMaxRetries, MaxMaxRetries)
	}
	if c.RetryIntervalHours < MinRetryIntervalHours || c.RetryIntervalHours > MaxRetryIntervalHours {
		return fmt.Errorf("%w: retry_interval_hours must be between %d and %d", ErrInvalidConfig, MinRetryIntervalHours, MaxRetryIntervalHours)
	}
	if len(c.ToneSequence) == 0 {
		return fmt.Errorf("%w: tone_sequence must not be empty", ErrInvalidConfig)
	}
	for _, t := range c.ToneSequence {
		if !t.IsValid() {
			return fmt.Errorf("%w: unknown tone %q", ErrInvalidConfig, t)
		}
	}
	return nil
}

// Interval is the gap between two dunning emails.
func (c Config) Interval() time.Duration {
	return time.Duration(c.RetryIntervalHours) * time.Hour
}

// Step is the outcome of advancing a failure after a successful send.
type Step struct {
	RetryCount  int
	Abandoned   bool
	NextRetryAt *time.Time
}

// Advance computes the post-send state. A failure is abandoned once
// retryCount reaches maxRetries; abandoned failures carry no next retry.
func Advance(retryCount, maxRetries int, interval time.Duration, now time.Time) Step {
	next := retryCount + 1
	if next >= maxRetries {
		return Step{RetryCount: next, Abandoned: true}
	}
	at := now.Add(interval)
	return Step{RetryCount: next, NextRetryAt: &at}
}
