package strategy

// Epoch tracks the logical time window of the active position. StartedAt
// of zero means no epoch is open; that absence is the terminal state, no
// separate end timestamp is kept.
type Epoch struct {
	StartedAt uint64
	Duration  uint64
}

// IsOpen reports whether an epoch is running.
func (e Epoch) IsOpen() bool {
	return e.StartedAt != 0
}

// Open records the epoch start.
func (e *Epoch) Open(now uint64) {
	e.StartedAt = now
}

// Clear resets the epoch to the no-epoch state.
func (e *Epoch) Clear() {
	e.StartedAt = 0
}

// ShouldClose decides whether the open epoch must end: either the
// duration elapsed, or the anchored current tick reached the top of the
// stored range (the position is fully one-sided past the range and earns
// no further fees). Both boundaries are inclusive. Only the upper bound
// is checked: the range is skewed for single-sided base-asset entry, so
// a downward exit leaves the position entirely in the base asset and is
// ridden out until expiry.
func (e Epoch) ShouldClose(now uint64, anchoredTick, upperTick int32) bool {
	if !e.IsOpen() {
		return false
	}
	if now >= e.StartedAt+e.Duration {
		return true
	}
	return anchoredTick >= upperTick
}
