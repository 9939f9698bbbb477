package train

// LinearSchedule ramps the learning rate linearly from zero to the base rate
// over Warmup steps, then decays it linearly to zero at Total steps.
type LinearSchedule struct {
	Warmup int
	Total  int
}

// NewLinearSchedule builds the schedule for batchesPerEpoch*epochs steps
// with one tenth of them spent warming up.
func NewLinearSchedule(batchesPerEpoch, epochs int) LinearSchedule {
	total := batchesPerEpoch * epochs
	return LinearSchedule{Warmup: total / 10, Total: total}
}

// Factor is the multiplier applied to the base rate at step.
func (s LinearSchedule) Factor(step int) float64 {
	if step < s.Warmup {
		return float64(step) / float64(max(1, s.Warmup))
	}
	return max(0, float64(s.Total-step)/float64(max(1, s.Total-s.Warmup)))
}
