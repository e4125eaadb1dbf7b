package transport

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
)

// Reopen backoff defaults. A transceiver that was unplugged usually
// re-enumerates within a few seconds.
const (
	// InitialBackoff is the delay before the first reopen attempt.
	InitialBackoff = 500 * time.Millisecond

	// MaxBackoff caps the delay between attempts.
	MaxBackoff = 10 * time.Second

	// BackoffMultiplier is the factor by which the delay grows.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the delay.
	JitterFactor = 0.25
)

// Backoff calculates exponential backoff delays with jitter.
type Backoff struct {
	mu sync.Mutex

	current    time.Duration
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	attempts   int

	rng *rand.Rand
}

// BackoffConfig customizes a Backoff. Zero fields take the defaults.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial,omitempty"`
	Max        time.Duration `yaml:"max,omitempty"`
	Multiplier float64       `yaml:"multiplier,omitempty"`
	Jitter     float64       `yaml:"jitter,omitempty"`
}

// NewBackoff creates a backoff calculator.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)
	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next
	return delay
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the next base delay without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}

// ReopenConfig configures Reopen.
type ReopenConfig struct {
	// Transport selects and configures the transceiver. Its SerialNumber
	// should name the lost transceiver so another one is not picked up.
	Transport Config

	// Backoff spaces the attempts.
	Backoff BackoffConfig

	// MaxAttempts stops after this many failures (0: until ctx is done).
	MaxAttempts int

	// OnAttempt is called before each wait with the attempt number and delay.
	OnAttempt func(attempt int, delay time.Duration)
}

// Reopen opens the transceiver again and installs it in d. It retries with
// exponential backoff until it succeeds, ctx is done or MaxAttempts
// failures happened; the last open error is returned in that case.
func Reopen(ctx context.Context, d *dispatch.Dispatcher, cfg ReopenConfig) (*Transport, error) {
	b := NewBackoff(cfg.Backoff)
	tc := cfg.Transport.withDefaults()

	var lastErr error
	for {
		delay := b.Next()
		attempt := b.Attempts()
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			return nil, lastErr
		}
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}

		t, err := Open(ctx, tc)
		if err == nil {
			tc.Logger.Info("transceiver reopened", "port", t.PortName(), "serial", t.SerialNumber(), "attempts", attempt)
			d.Reset(t)
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		tc.Logger.Debug("reopen failed", "attempt", attempt, "error", err)
		lastErr = err
	}
}

// ReopenFor builds the ReopenConfig that reopens the transceiver behind t.
func ReopenFor(t *Transport) ReopenConfig {
	tc := t.config
	tc.PortName = ""
	tc.SerialNumber = t.SerialNumber()
	return ReopenConfig{Transport: tc}
}
