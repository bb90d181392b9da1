package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Policy computes exponential retry delays with +/-50% jitter, capped at Max
// when Max is positive.
type Policy struct {
	Base time.Duration
	Max  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPolicy(base, max time.Duration) *Policy {
	return &Policy{Base: base, Max: max, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Delay returns the wait before attempt. The first attempt never waits.
func (p *Policy) Delay(attempt int) time.Duration {
	return p.delay(attempt, p.Base, p.Max)
}

func (p *Policy) delay(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 1 || base <= 0 {
		return 0
	}

	nominal := float64(base) * math.Pow(2, float64(attempt-1))
	if max > 0 && nominal > float64(max) {
		nominal = float64(max)
	}

	p.mu.Lock()
	jitter := (p.rng.Float64()*2 - 1) * nominal * 0.5
	p.mu.Unlock()

	d := time.Duration(nominal + jitter)
	switch {
	case d < 0:
		return 0
	case max > 0 && d > max:
		return max
	}
	return d
}

var shared = NewPolicy(0, 0)

// CalculateRetryDelay returns the uncapped delay before attempt for baseRetryDelay.
func CalculateRetryDelay(attempt int, baseRetryDelay time.Duration) time.Duration {
	return shared.delay(attempt, baseRetryDelay, 0)
}
