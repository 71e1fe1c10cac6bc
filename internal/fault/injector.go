// Package fault adds random latency and synthetic failures to named operations.
package fault

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrSyntheticFault is returned when a policy decides to fail an operation.
var ErrSyntheticFault = errors.New("synthetic fault")

// Policy describes the latency range and failure probability of one operation.
type Policy struct {
	Name        string        `yaml:"-"`
	MinLatency  time.Duration `yaml:"min_latency"`
	MaxLatency  time.Duration `yaml:"max_latency"`
	FailureRate float64       `yaml:"failure_rate"`
	Message     string        `yaml:"message"`
}

// Validate checks the ranges of a policy.
func (p Policy) Validate() error {
	if p.MinLatency < 0 || p.MaxLatency < 0 {
		return fmt.Errorf("policy %q: latency must not be negative", p.Name)
	}
	if p.MaxLatency < p.MinLatency {
		return fmt.Errorf("policy %q: max_latency %s is below min_latency %s", p.Name, p.MaxLatency, p.MinLatency)
	}
	if p.FailureRate < 0 || p.FailureRate > 1 {
		return fmt.Errorf("policy %q: failure_rate %v outside [0, 1]", p.Name, p.FailureRate)
	}
	return nil
}

// Named returns a copy of p carrying name.
func (p Policy) Named(name string) Policy {
	p.Name = name
	return p
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Injector applies policies. It is safe for concurrent use.
type Injector struct {
	mu       sync.Mutex
	rng      *rand.Rand
	sleep    SleepFunc
	disabled bool
}

type Option func(*Injector)

// WithSource makes the injector draw from src, for reproducible runs.
func WithSource(src rand.Source) Option {
	return func(i *Injector) { i.rng = rand.New(src) }
}

// WithSleep replaces the real sleep; tests pass a recorder.
func WithSleep(fn SleepFunc) Option {
	return func(i *Injector) { i.sleep = fn }
}

// Disabled turns every Apply into a no-op.
func Disabled() Option {
	return func(i *Injector) { i.disabled = true }
}

func New(opts ...Option) *Injector {
	i := &Injector{
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Apply waits a random time in [MinLatency, MaxLatency] and then fails with
// probability FailureRate. The returned error wraps ErrSyntheticFault, or is the
// context error if ctx ends during the wait.
func (i *Injector) Apply(ctx context.Context, p Policy) error {
	if i == nil || i.disabled {
		return nil
	}

	delay, fail := i.draw(p)
	if err := i.sleep(ctx, delay); err != nil {
		return err
	}
	if fail {
		msg := p.Message
		if msg == "" {
			msg = fmt.Sprintf("simulated %s error", p.Name)
		}
		return fmt.Errorf("%w: %s", ErrSyntheticFault, msg)
	}
	return nil
}

// Trip fails with probability FailureRate and, only when failing, waits the
// policy latency first. It models an error flag rather than a slow dependency.
func (i *Injector) Trip(ctx context.Context, p Policy) error {
	if i == nil || i.disabled || p.FailureRate <= 0 {
		return nil
	}
	if i.Float64() >= p.FailureRate {
		return nil
	}
	return i.Apply(ctx, Policy{
		Name:        p.Name,
		MinLatency:  p.MinLatency,
		MaxLatency:  p.MaxLatency,
		FailureRate: 1,
		Message:     p.Message,
	})
}

// Delay waits a random time in [min, max] without any failure draw.
func (i *Injector) Delay(ctx context.Context, min, max time.Duration) error {
	return i.Apply(ctx, Policy{MinLatency: min, MaxLatency: max})
}

// Float64 exposes the injector's random source for callers that make their own draws.
func (i *Injector) Float64() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rng.Float64()
}

// IntN returns a value in [0, n).
func (i *Injector) IntN(n int) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rng.IntN(n)
}

func (i *Injector) draw(p Policy) (time.Duration, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	delay := p.MinLatency
	if span := p.MaxLatency - p.MinLatency; span > 0 {
		delay += time.Duration(i.rng.Int64N(int64(span) + 1))
	}

	fail := false
	if p.FailureRate > 0 {
		fail = i.rng.Float64() < p.FailureRate
	}
	return delay, fail
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
