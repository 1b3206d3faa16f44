package orders

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/tournevent/sendcloud-fulfillment/pkg/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type counter interface {
	Inc()
}

// RetryConfig describes RetryingGateway behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingGateway retries transient lookup failures with capped
// exponential backoff.
type RetryingGateway struct {
	next    Gateway
	logger  *otelzap.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingGateway wraps next. It returns nil when next is nil.
func NewRetryingGateway(next Gateway, logger *otelzap.Logger, retries counter, cfg RetryConfig) *RetryingGateway {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, cfg: cfg}
}

// GetByID calls the wrapped gateway until it succeeds, fails permanently, or
// runs out of attempts.
func (g *RetryingGateway) GetByID(ctx context.Context, id string) (*fulfillment.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		ord, err := g.next.GetByID(ctx, id)
		if err == nil {
			return ord, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		if g.logger != nil {
			g.logger.Ctx(ctx).Warn("orders gateway retry",
				zap.String("order_id", id),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return nil, lastErr
}

// isRetryable reports whether err is a transport failure or a 5xx/429.
func isRetryable(err error) bool {
	if errors.Is(err, fulfillment.ErrOrderNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max || d < 0 {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
