package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerNoChecks(t *testing.T) {
	c := New()

	status, err := c.CheckLiveness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}

func TestCheckerHealthy(t *testing.T) {
	c := New()
	c.AddLivenessCheck(NewCheckFunc("process", func(ctx context.Context) error {
		return nil
	}))

	status, err := c.CheckLiveness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	require.Len(t, status.Checks, 1)
	assert.Equal(t, "process", status.Checks[0].Name)
}

func TestFailureThreshold(t *testing.T) {
	c := New(WithFailureThreshold(3))
	c.AddReadinessCheck(NewCheckFunc("flaky", func(ctx context.Context) error {
		return errors.New("down")
	}))

	// First two failures stay below the threshold.
	for i := 0; i < 2; i++ {
		status, err := c.CheckReadiness(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Healthy)
	}

	// Third consecutive failure trips the threshold.
	status, err := c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "down", status.Checks[0].Error)
}

func TestFailureCountResetsOnSuccess(t *testing.T) {
	healthy := false
	c := New(WithFailureThreshold(2))
	c.AddReadinessCheck(NewCheckFunc("recovering", func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}))

	_, err := c.CheckReadiness(context.Background())
	require.NoError(t, err)

	healthy = true
	_, err = c.CheckReadiness(context.Background())
	require.NoError(t, err)

	// Failure count was reset, one new failure does not trip.
	healthy = false
	status, err := c.CheckReadiness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestCheckTimeout(t *testing.T) {
	c := New(WithTimeout(10*time.Millisecond), WithFailureThreshold(1))
	c.AddReadinessCheck(NewCheckFunc("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}))

	status, err := c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
