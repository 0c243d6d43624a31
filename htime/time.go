// Package htime implements the federation's logical time type: a signed
// 64-bit count of a fixed sub-second granularity (nanoseconds), with the
// sentinels and period/offset grid arithmetic the time coordinator needs.
package htime

import (
	"fmt"
	"math"
)

// Time is a logical timestamp, counted in the federation's base time unit
// (nanoseconds, per spec §3). It backs time deltas, period, offset, input
// delay, and output delay as well as instants.
type Time int64

const (
	// Zero is the start of simulated time.
	Zero Time = 0
	// Epsilon is the smallest representable positive time step.
	Epsilon Time = 1
	// MaxVal is treated as "infinity": no real grant ever reaches it.
	MaxVal Time = math.MaxInt64
)

// Add returns t+d, saturating at MaxVal instead of overflowing.
func (t Time) Add(d Time) Time {
	if t >= MaxVal-d && d > 0 {
		return MaxVal
	}
	return t + d
}

// Before reports whether t is strictly earlier than other.
func (t Time) Before(other Time) bool { return t < other }

// After reports whether t is strictly later than other.
func (t Time) After(other Time) bool { return t > other }

func (t Time) String() string {
	if t == MaxVal {
		return "maxtime"
	}
	return fmt.Sprintf("%d", int64(t))
}

// SnapToGrid rounds t up to the next point on the period/offset grid
// {offset + k*period : k >= 0}, per spec §4.2 rule 2. A non-positive period
// means there is no grid and t is returned unchanged.
func SnapToGrid(t, offset, period Time) Time {
	if period <= 0 {
		return t
	}
	if t <= offset {
		return offset
	}
	delta := t - offset
	k := int64(delta) / int64(period)
	if int64(delta)%int64(period) != 0 {
		k++
	}
	return offset.Add(Time(k) * period)
}

// Min returns the earlier of a and b.
func Min(a, b Time) Time {
	if a < b {
		return a
	}
	return b
}

// Max returns the later of a and b.
func Max(a, b Time) Time {
	if a > b {
		return a
	}
	return b
}
