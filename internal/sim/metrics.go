package sim

import (
	"math"

	"github.com/seralt/cstrd/internal/plant"
)

// ControlEffort tracks the mean deviation of the applied cooling temperature
// from its steady-state value.
type ControlEffort struct {
	ref     float64
	sum     float64
	samples int
}

func NewControlEffort(ref float64) *ControlEffort {
	return &ControlEffort{ref: ref}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x plant.State, u float64, t float64) {
	c.sum += math.Abs(u - c.ref)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// TempBand tracks the fraction of steps whose reactor temperature stayed
// inside [lo, hi].
type TempBand struct {
	lo, hi     float64
	violations int
	samples    int
}

func NewTempBand(lo, hi float64) *TempBand {
	return &TempBand{lo: lo, hi: hi}
}

func (b *TempBand) Name() string { return "temp_band" }

func (b *TempBand) Observe(x plant.State, u float64, t float64) {
	b.samples++
	if x[1] < b.lo || x[1] > b.hi {
		b.violations++
	}
}

func (b *TempBand) Value() float64 {
	if b.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(b.violations)/float64(b.samples)
}

func (b *TempBand) Reset() {
	b.violations = 0
	b.samples = 0
}
