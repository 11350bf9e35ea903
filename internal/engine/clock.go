package engine

import "sync/atomic"

// Clock hands out arrival sequence numbers. The engine stamps files in
// batch order and rows in physical order, so a later seq always means a
// later arrival and recency ties resolve the same way on every run.
//
// The zero Clock is ready to use; its first seq is 1.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next stamps one arrival.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last seq handed out, 0 before the first arrival.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
