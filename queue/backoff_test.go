package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDelayGrowsExponentially(t *testing.T) {
	p := &RetryPolicy{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		Jitter:       false,
	}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
}

func TestDelayCappedAtMax(t *testing.T) {
	p := &RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   3.0,
	}

	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestDelayBoundsWithJitter(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := &RetryPolicy{
			InitialDelay: time.Duration(rapid.Int64Range(int64(time.Millisecond), int64(time.Second)).Draw(t, "initial")),
			MaxDelay:     10 * time.Second,
			Multiplier:   rapid.Float64Range(1.0, 4.0).Draw(t, "multiplier"),
			Jitter:       true,
		}
		attempt := rapid.IntRange(1, 20).Draw(t, "attempt")

		d := p.Delay(attempt)
		if d < p.InitialDelay {
			t.Fatalf("delay %v below initial %v", d, p.InitialDelay)
		}
		// +25% jitter above the cap is the worst case.
		if d > p.MaxDelay+p.MaxDelay/4 {
			t.Fatalf("delay %v exceeds jittered cap", d)
		}
	})
}

func TestNormalizeFixesBadValues(t *testing.T) {
	p := &RetryPolicy{MaxRetries: -1, InitialDelay: -1, MaxDelay: 0, Multiplier: 0.5}
	p.normalize()

	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
}
