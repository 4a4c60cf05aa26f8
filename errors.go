package tafelcore

import "errors"

var (
	// ErrEmptySweep is returned when a voltage sequence has no samples.
	ErrEmptySweep = errors.New("tafelcore: empty sweep")

	// ErrNoCycleFound is returned when the voltage never decreases, so the
	// forward and reverse half-scans cannot be told apart.
	ErrNoCycleFound = errors.New("tafelcore: no cycle found")

	// ErrUnbalancedSweep is returned when the reverse half-scan is shorter
	// than the forward one and forward samples would be left unpaired.
	ErrUnbalancedSweep = errors.New("tafelcore: reverse half-scan shorter than forward half-scan")

	// ErrNotFound is returned when no window satisfies both the span and the
	// positive correlation requirements.
	ErrNotFound = errors.New("tafelcore: no linear segment found")

	// ErrLengthMismatch is returned when x and y differ in length.
	ErrLengthMismatch = errors.New("tafelcore: slice length mismatch")

	// ErrTooManyPoints is returned when a candidate series exceeds the
	// configured search bound.
	ErrTooManyPoints = errors.New("tafelcore: too many candidate points")

	// ErrDegenerateWindow is returned by Regress when all x values are equal.
	ErrDegenerateWindow = errors.New("tafelcore: regression over constant x")

	// ErrDegenerateSlope is returned when a zero slope makes the exchange
	// current density undefined.
	ErrDegenerateSlope = errors.New("tafelcore: zero slope")

	// ErrNoOnset is returned when no sample exceeds the onset threshold.
	ErrNoOnset = errors.New("tafelcore: onset threshold never exceeded")

	// ErrNonFinite is returned by Sweep.Validate for NaN or infinite readings.
	ErrNonFinite = errors.New("tafelcore: non-finite sample")

	// ErrInvalidElectrode is returned for a non-positive electrode area.
	ErrInvalidElectrode = errors.New("tafelcore: invalid electrode")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrEmptySweep, "empty_sweep"},
	{ErrNoCycleFound, "no_cycle_found"},
	{ErrUnbalancedSweep, "unbalanced_sweep"},
	{ErrNotFound, "not_found"},
	{ErrLengthMismatch, "length_mismatch"},
	{ErrTooManyPoints, "too_many_points"},
	{ErrDegenerateWindow, "degenerate_window"},
	{ErrDegenerateSlope, "degenerate_slope"},
	{ErrNoOnset, "no_onset"},
	{ErrNonFinite, "non_finite"},
	{ErrInvalidElectrode, "invalid_electrode"},
}

// ErrorKind returns a stable machine-readable name for err: "ok" for nil,
// the sentinel's name when err wraps one, otherwise "internal".
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
