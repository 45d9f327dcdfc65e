package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(0, 0)
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
}

func TestBreaker_OpensAndHalfOpens(t *testing.T) {
	now := baseTime
	b := NewBreaker(2, 10*time.Second)
	b.now = func() time.Time { return now }

	assert.True(t, b.Allow())
	assert.False(t, b.Failure())
	assert.True(t, b.Failure(), "second failure opens")
	assert.False(t, b.Failure(), "already open")

	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow())

	now = now.Add(11 * time.Second)
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow(), "half-open probe")

	assert.True(t, b.Failure(), "failed probe re-opens at once")
	assert.False(t, b.Allow())

	now = now.Add(11 * time.Second)
	assert.True(t, b.Allow())
	b.Success()
	assert.False(t, b.IsOpen())
	assert.False(t, b.Failure(), "counter reset by success")
}
