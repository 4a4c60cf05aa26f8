package tafelcore

import "fmt"

// FindBoundary returns the index of the forward-scan apex: the last sample
// before the voltage first drops below its predecessor. Equal consecutive
// samples continue the forward scan.
//
// Only the first reversal is reported. Sweeps holding more than one cycle
// must be split by the caller.
func FindBoundary(voltages []float64) (int, error) {
	if len(voltages) == 0 {
		return 0, ErrEmptySweep
	}
	prev := voltages[0]
	for i := 1; i < len(voltages); i++ {
		v := voltages[i]
		if v < prev {
			return i - 1, nil
		}
		prev = v
	}
	return 0, fmt.Errorf("%w in %d samples", ErrNoCycleFound, len(voltages))
}
