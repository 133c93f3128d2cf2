package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentalbot/internal/metrics"
	"dentalbot/internal/session"
)

type fixedClassifier struct {
	intents []session.Intent
	err     error
	calls   int
}

func (f *fixedClassifier) DetectIntents(context.Context, string, Context) ([]session.Intent, error) {
	f.calls++
	return f.intents, f.err
}

func TestChainUsesPrimary(t *testing.T) {
	primary := &fixedClassifier{intents: []session.Intent{session.IntentCancel}}
	fallback := &fixedClassifier{intents: []session.Intent{session.IntentBooking}}
	c := Chain{Primary: primary, Fallback: fallback}

	got, err := c.DetectIntents(context.Background(), "x", Context{})
	require.NoError(t, err)
	assert.Equal(t, []session.Intent{session.IntentCancel}, got)
	assert.Equal(t, 0, fallback.calls)
}

func TestChainFallsBackOnError(t *testing.T) {
	primary := &fixedClassifier{err: errors.New("timeout")}
	c := Chain{Primary: primary, Fallback: Keyword{}, Metrics: metrics.New(prometheus.NewRegistry())}

	got, err := c.DetectIntents(context.Background(), "cancel please", Context{})
	require.NoError(t, err)
	assert.Equal(t, []session.Intent{session.IntentCancel}, got)
	assert.Equal(t, 1, primary.calls)
}

func TestChainWithoutClassifiers(t *testing.T) {
	_, err := Chain{}.DetectIntents(context.Background(), "x", Context{})
	assert.Error(t, err)
}
