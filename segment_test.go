package tafelcore

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBestSegment(t *testing.T) {
	t.Run("perfect line", func(t *testing.T) {
		x := []float64{0.0, 0.5, 1.0, 1.5, 2.0}
		y := []float64{0.30, 0.35, 0.40, 0.45, 0.50}

		w, reg, err := FindBestSegment(x, y, DefaultMinSpan)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, w.Span(x), DefaultMinSpan)
		assert.InDelta(t, 1.0, reg.R, 1e-9)
		assert.InDelta(t, 0.1, reg.Slope, 1e-9)
		assert.InDelta(t, 0.30, reg.Intercept, 1e-9)
	})

	t.Run("span below minimum", func(t *testing.T) {
		_, _, err := FindBestSegment([]float64{0.0, 0.2}, []float64{0.3, 0.5}, DefaultMinSpan)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("every span below minimum", func(t *testing.T) {
		x := []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5}
		y := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
		_, _, err := FindBestSegment(x, y, DefaultMinSpan)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := FindBestSegment(nil, nil, DefaultMinSpan)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, _, err := FindBestSegment([]float64{0, 1, 2}, []float64{0, 1}, DefaultMinSpan)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("negative correlation is never selected", func(t *testing.T) {
		x := []float64{0, 0.5, 1, 1.5, 2}
		y := []float64{0.5, 0.45, 0.4, 0.35, 0.3}
		_, _, err := FindBestSegment(x, y, DefaultMinSpan)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("constant overpotential is never selected", func(t *testing.T) {
		x := []float64{0, 0.5, 1, 1.5, 2}
		y := []float64{0.4, 0.4, 0.4, 0.4, 0.4}
		_, _, err := FindBestSegment(x, y, DefaultMinSpan)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("linear region before saturation", func(t *testing.T) {
		var x, y []float64
		for i := 0; i <= 12; i++ {
			xi := 0.25 * float64(i)
			x = append(x, xi)
			if i <= 8 {
				y = append(y, 0.2+0.06*xi)
			} else {
				y = append(y, 0.2+0.06*2.0+0.2*(xi-2.0))
			}
		}

		w, reg, err := FindBestSegment(x, y, DefaultMinSpan)
		require.NoError(t, err)
		assert.LessOrEqual(t, w.End, 9)
		assert.InDelta(t, 1.0, reg.R, 1e-9)
		assert.InDelta(t, 0.06, reg.Slope, 1e-9)
		assert.InDelta(t, 0.2, reg.Intercept, 1e-9)
	})

	t.Run("zero span allows short windows", func(t *testing.T) {
		x := []float64{0, 1, 2}
		y := []float64{0, 1, 0}
		w, reg, err := FindBestSegment(x, y, 0)
		require.NoError(t, err)
		assert.Equal(t, Window{Start: 0, End: 2}, w)
		assert.InDelta(t, 1.0, reg.R, 1e-12)
	})

	t.Run("ties keep the first window", func(t *testing.T) {
		// [0,2) and [2,4) both have r = 1.
		x := []float64{0, 1, 2, 3}
		y := []float64{0, 1, 5, 6}
		w, _, err := FindBestSegment(x, y, 1)
		require.NoError(t, err)
		assert.Equal(t, Window{Start: 0, End: 2}, w)
	})
}

func noisyTafel(seed int64, n int) (x, y []float64) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		xi := 0.05 * float64(i)
		x = append(x, xi)
		yi := 0.3 + 0.08*xi + 0.01*rng.NormFloat64()
		if xi > 2 {
			yi += 0.1 * math.Pow(xi-2, 2)
		}
		y = append(y, yi)
	}
	return x, y
}

func TestSegmentFinderWindowProperties(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		x, y := noisyTafel(seed, 60)
		f := SegmentFinder{MinSpan: DefaultMinSpan}

		w, reg, err := f.Find(x, y)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, w.Start, 0)
		assert.Less(t, w.Start, w.End)
		assert.LessOrEqual(t, w.End, len(x))
		assert.GreaterOrEqual(t, w.Span(x), DefaultMinSpan)
		assert.Greater(t, reg.R, 0.0)

		direct, err := Regress(x[w.Start:w.End], y[w.Start:w.End])
		require.NoError(t, err)
		assert.Equal(t, direct, reg)
	}
}

func TestSegmentFinderDeterministic(t *testing.T) {
	x, y := noisyTafel(7, 50)
	f := SegmentFinder{MinSpan: DefaultMinSpan}

	w1, reg1, err := f.Find(x, y)
	require.NoError(t, err)
	w2, reg2, err := f.Find(x, y)
	require.NoError(t, err)

	assert.Equal(t, w1, w2)
	assert.Equal(t, reg1, reg2)
}

func TestSegmentFinderParallelMatchesSequential(t *testing.T) {
	for seed := int64(1); seed <= 4; seed++ {
		x, y := noisyTafel(seed, 45)

		seqW, seqReg, seqErr := SegmentFinder{MinSpan: 0.5}.Find(x, y)
		parW, parReg, parErr := SegmentFinder{MinSpan: 0.5, Workers: 4}.Find(x, y)

		require.NoError(t, seqErr)
		require.NoError(t, parErr)
		assert.Equal(t, seqW, parW)
		assert.Equal(t, seqReg, parReg)
	}
}

func TestSegmentFinderMaxPoints(t *testing.T) {
	x, y := noisyTafel(1, 20)

	_, _, err := SegmentFinder{MinSpan: DefaultMinSpan, MaxPoints: 10}.Find(x, y)
	assert.ErrorIs(t, err, ErrTooManyPoints)

	_, _, err = SegmentFinder{MinSpan: 0.5, MaxPoints: 20}.Find(x, y)
	assert.NoError(t, err)
}

func TestWindow(t *testing.T) {
	w := Window{Start: 1, End: 4}
	assert.Equal(t, 3, w.Len())
	assert.InDelta(t, 1.5, w.Span([]float64{0, 0.5, 1, 2, 3}), 1e-12)
}
