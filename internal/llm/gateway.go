// Package llm wraps the external language model behind a small gateway
// with bounded timeouts, a fixed retry budget and jittered exponential
// backoff. The gateway holds no state: one network call per attempt,
// nothing mutated locally.
package llm

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"google.golang.org/genai"

	"finchat/internal/core"
)

// Completer is the minimal surface the gateway needs from a model client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrTransient marks an error as retryable. Test doubles and adapters can
// wrap with it to opt into the retry path explicitly.
var ErrTransient = errors.New("transient llm error")

// Disabled is the Completer used when no model credentials are
// configured. Every call fails permanently so callers take their
// grounded fallback path.
type Disabled struct{}

func (Disabled) Complete(context.Context, string) (string, error) {
	return "", errors.New("no language model configured")
}

// Config for the gateway retry behavior.
type Config struct {
	AttemptTimeout time.Duration // per-attempt deadline
	MaxRetries     int           // retries after the first attempt
	BackoffBase    time.Duration // first backoff ceiling, doubles per retry
}

// DefaultConfig returns sensible defaults: 10s per attempt, two retries,
// half-second backoff base.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 10 * time.Second,
		MaxRetries:     2,
		BackoffBase:    500 * time.Millisecond,
	}
}

type Gateway struct {
	client Completer
	cfg    Config

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(client Completer, cfg Config) *Gateway {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	return &Gateway{client: client, cfg: cfg, sleep: sleepCtx}
}

// Ask sends the prompt, retrying transient failures up to the configured
// budget. Exhaustion or a permanent failure returns a GatewayError that
// wraps core.ErrGatewayFailure so callers can take the fallback path.
// Caller cancellation is passed through untouched.
func (g *Gateway) Ask(ctx context.Context, prompt string) (string, error) {
	var last error
	attempts := 0

	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, backoffDelay(g.cfg.BackoffBase, attempt)); err != nil {
				return "", err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		reply, err := g.client.Complete(attemptCtx, prompt)
		cancel()

		attempts++
		if err == nil {
			return reply, nil
		}
		last = err

		// Caller gave up: not a gateway failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !Retryable(err) {
			break
		}
	}
	return "", &core.GatewayError{Attempts: attempts, Last: last}
}

// Retryable classifies failures. Timeouts, transport errors and
// 5xx-equivalent API errors are transient; everything else (invalid
// prompt, quota exhaustion, other 4xx) is permanent and never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// backoffDelay computes a full-jitter exponential delay for the given
// retry number (1-based): uniform in [0, base*2^(n-1)], capped at 5s.
func backoffDelay(base time.Duration, retry int) time.Duration {
	ceiling := base << (retry - 1)
	if ceiling > 5*time.Second {
		ceiling = 5 * time.Second
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
