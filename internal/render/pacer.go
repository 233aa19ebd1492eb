package render

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Pacer sleeps out the remainder of each frame interval. After a slow
// frame it does not sleep at all; there is no catch-up debt, the next
// interval starts fresh.
type Pacer struct {
	interval time.Duration
	last     time.Time
	clock    clock.Clock
}

// NewPacer creates a pacer for the given target FPS.
func NewPacer(targetFPS float64) *Pacer {
	if targetFPS <= 0 {
		targetFPS = 60
	}
	clk := clock.New()
	return &Pacer{
		interval: time.Duration(float64(time.Second) / targetFPS),
		last:     clk.Now(),
		clock:    clk,
	}
}

// Wait blocks until the current frame interval has elapsed since the
// previous Wait returned. Returns immediately if the interval has already
// passed.
func (p *Pacer) Wait() {
	elapsed := p.clock.Since(p.last)
	if elapsed < p.interval {
		p.clock.Sleep(p.interval - elapsed)
	}
	p.last = p.clock.Now()
}

// Interval returns the configured frame interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
