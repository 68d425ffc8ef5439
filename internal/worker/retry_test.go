package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownFirstRetryUsesBaseDelay(t *testing.T) {
	p := NewRetryPolicy(time.Minute, time.Hour)

	assert.Equal(t, time.Minute, p.Cooldown(2, 0))
	assert.Equal(t, time.Minute, p.Cooldown(2, 1))
}

func TestCooldownGrowsExponentially(t *testing.T) {
	p := NewRetryPolicy(time.Minute, time.Hour)

	assert.Equal(t, 2*time.Minute, p.Cooldown(2, 2))
	assert.Equal(t, 4*time.Minute, p.Cooldown(2, 3))
	assert.Equal(t, 8*time.Minute, p.Cooldown(2, 4))
}

func TestCooldownIsCapped(t *testing.T) {
	p := NewRetryPolicy(time.Minute, 10*time.Minute)

	assert.Equal(t, 10*time.Minute, p.Cooldown(2, 5))
	assert.Equal(t, 10*time.Minute, p.Cooldown(10, 20), "overflow-prone exponents stay at the cap")
}

func TestCooldownMultiplierFloor(t *testing.T) {
	p := NewRetryPolicy(time.Minute, time.Hour)

	// A multiplier below 1 would shrink the cooldown; it is clamped instead.
	assert.Equal(t, time.Minute, p.Cooldown(0.5, 3))
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	p := NewRetryPolicy(0, 0)

	assert.Equal(t, time.Minute, p.MinCooldown())
	assert.Equal(t, 16*time.Minute, p.Cooldown(2, 100))
}
