package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllowExhaustsBurst(t *testing.T) {
	b := NewTokenBucket(3, 1, 0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow(now), "call %d within burst", i)
	}
	assert.False(t, b.Allow(now), "burst exhausted")

	// one second refills one token at rate 1
	assert.True(t, b.Allow(now.Add(time.Second)))
}

func TestAdjustForLatencyThrottlesAndRecovers(t *testing.T) {
	b := NewTokenBucket(20, 10, 100)

	// past twice baseline the bucket shrinks
	b.AdjustForLatency(250)
	assert.Equal(t, 10, b.Burst())
	assert.Equal(t, 5.0, b.Rate())

	// repeated slowness keeps shrinking but never below the floor
	for i := 0; i < 10; i++ {
		b.AdjustForLatency(250)
	}
	assert.Equal(t, 1, b.Burst())
	assert.Equal(t, 1.0, b.Rate())

	// back at baseline the original settings return
	b.AdjustForLatency(100)
	assert.Equal(t, 20, b.Burst())
	assert.Equal(t, 10.0, b.Rate())
}

func TestAdjustForLatencyMidRangeHolds(t *testing.T) {
	b := NewTokenBucket(20, 10, 100)
	b.AdjustForLatency(250)
	assert.Equal(t, 10, b.Burst())

	// between 1x and 2x baseline nothing changes
	b.AdjustForLatency(150)
	assert.Equal(t, 10, b.Burst())
	assert.Equal(t, 5.0, b.Rate())
}

func TestAdjustForLatencyZeroBaselineDisabled(t *testing.T) {
	b := NewTokenBucket(20, 10, 0)
	b.AdjustForLatency(10000)
	assert.Equal(t, 20, b.Burst())
	assert.Equal(t, 10.0, b.Rate())
}
