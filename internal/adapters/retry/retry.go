package retry

import (
	"context"
	"math"
	"net"
	"strings"
	"time"

	"marketregime/pkg/errors"
)

// Strategy defines the retry strategy
type Strategy string

const (
	// StrategyExponential uses exponential backoff
	StrategyExponential Strategy = "exponential"
	// StrategyLinear uses linear backoff
	StrategyLinear Strategy = "linear"
	// StrategyFixed uses fixed delay
	StrategyFixed Strategy = "fixed"
)

// Config contains retry configuration
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     Strategy
	Multiplier   float64 // For exponential backoff
}

// DefaultConfig returns the backoff used when connecting to backends
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
	}
}

// Retrier re-runs operations that fail with transient errors
type Retrier struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retrier. MaxRetries 0 runs the operation once.
func New(config Config) *Retrier {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Strategy == "" {
		config.Strategy = StrategyExponential
	}

	return &Retrier{config: config, sleep: sleepContext}
}

// Do executes fn until it succeeds, fails permanently or retries run out
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt == r.config.MaxRetries {
			break
		}

		if err := r.sleep(ctx, r.delay(attempt)); err != nil {
			return errors.Wrap(err, "retry cancelled")
		}
	}

	if r.config.MaxRetries == 0 {
		return lastErr
	}
	return errors.Wrapf(lastErr, "max retries (%d) exceeded", r.config.MaxRetries)
}

// delay calculates the backoff delay based on the strategy
func (r *Retrier) delay(attempt int) time.Duration {
	var d time.Duration

	switch r.config.Strategy {
	case StrategyExponential:
		d = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt)))
	case StrategyLinear:
		d = r.config.InitialDelay * time.Duration(1+attempt)
	default:
		d = r.config.InitialDelay
	}

	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var retryableMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"temporary failure",
	"eof",
}

// IsRetryable reports whether err is worth retrying: unavailable backends and
// network failures are, invalid input and cancellation are not
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errors.ErrInvalidInput) || errors.Is(err, errors.ErrSchema) {
		return false
	}
	if errors.Is(err, errors.ErrUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range retryableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
