package train

import "math"

// BestTracker remembers the lowest validation loss seen so far.
type BestTracker struct {
	best float64
	set  bool
}

// Best returns the lowest loss observed, or +Inf before any observation.
func (b *BestTracker) Best() float64 {
	if !b.set {
		return math.Inf(1)
	}
	return b.best
}

// Observe records loss and reports whether it strictly improves on the best.
// Ties are not improvements.
func (b *BestTracker) Observe(loss float64) bool {
	if loss < b.Best() {
		b.best, b.set = loss, true
		return true
	}
	return false
}
