package timectrl

import (
	"context"
	"sync"
	"time"
)

// TickClock exposes the current playback tick to components that only
// need to read it.
type TickClock interface {
	// Now returns the current tick.
	Now() int
}

// Mode describes how the Player advances ticks.
type Mode int

const (
	// RealTime waits Interval between ticks.
	RealTime Mode = iota
	// Accelerated steps through the ticks as fast as listeners allow.
	Accelerated
)

// Player steps a tick counter from Start to End (inclusive) and notifies
// registered listeners on every step. It implements TickClock.
type Player struct {
	mu       sync.RWMutex
	Start    int
	End      int
	Interval time.Duration
	Mode     Mode

	current   int
	listeners []func(int)
}

// NewPlayer constructs a player positioned at start.
func NewPlayer(start, end int, interval time.Duration, mode Mode) *Player {
	if end < start {
		end = start
	}
	return &Player{
		Start:    start,
		End:      end,
		Interval: interval,
		Mode:     mode,
		current:  start,
	}
}

// IntervalForRate converts ticks per second into a step interval.
func IntervalForRate(ticksPerSecond float64) time.Duration {
	if ticksPerSecond <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / ticksPerSecond)
}

// Now returns the current tick. Implements TickClock.
func (p *Player) Now() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Seek moves the current tick without notifying listeners. The next Run
// continues from there.
func (p *Player) Seek(tick int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = min(max(tick, p.Start), p.End)
}

// AddListener registers a callback invoked on every tick.
func (p *Player) AddListener(fn func(int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Run notifies listeners of the current tick and then steps until End is
// reached or ctx is cancelled. It returns a channel that is closed when
// playback stops.
func (p *Player) Run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var tickC <-chan time.Time
		if p.Mode == RealTime && p.Interval > 0 {
			ticker := time.NewTicker(p.Interval)
			defer ticker.Stop()
			tickC = ticker.C
		}

		p.mu.RLock()
		tick := p.current
		p.mu.RUnlock()
		p.notify(tick)

		for tick < p.End {
			if tickC != nil {
				select {
				case <-ctx.Done():
					return
				case <-tickC:
				}
			} else if ctx.Err() != nil {
				return
			}

			tick++
			p.mu.Lock()
			p.current = tick
			p.mu.Unlock()
			p.notify(tick)
		}
	}()
	return done
}

func (p *Player) notify(tick int) {
	p.mu.RLock()
	listeners := append([]func(int){}, p.listeners...)
	p.mu.RUnlock()
	for _, fn := range listeners {
		fn(tick)
	}
}
