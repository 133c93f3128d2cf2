package intent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"dentalbot/internal/metrics"
	"dentalbot/internal/session"
)

// Chain asks Primary and falls back to Fallback when it fails or is absent.
type Chain struct {
	Primary  Classifier
	Fallback Classifier
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

func (c Chain) DetectIntents(ctx context.Context, text string, ic Context) ([]session.Intent, error) {
	if c.Primary != nil {
		intents, err := c.Primary.DetectIntents(ctx, text, ic)
		if err == nil {
			return intents, nil
		}
		if c.Logger != nil {
			c.Logger.Warn("intent classifier failed, using fallback", zap.Error(err))
		}
		c.Metrics.IntentFallback()
	}
	if c.Fallback == nil {
		return nil, errors.New("intent: no classifier available")
	}
	return c.Fallback.DetectIntents(ctx, text, ic)
}
