package filters

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func mustFilter(t *testing.T, cfg BilateralConfig) *BilateralFilter {
	t.Helper()
	bf, err := NewBilateralFilter(cfg)
	require.NoError(t, err)
	return bf
}

func noisyRows(seed int64, frames, channels int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, frames)
	for t := range rows {
		rows[t] = make([]float64, channels)
		for d := range rows[t] {
			rows[t][d] = math.Sin(float64(t)/7+float64(d)) + 0.2*(rng.Float64()*2-1)
		}
	}
	return rows
}

func TestDefaultBilateralConfig(t *testing.T) {
	cfg := DefaultBilateralConfig()
	assert.Equal(t, -0.5, cfg.Factor)
	assert.Equal(t, 1.0, cfg.DistanceSigma)
	assert.Equal(t, 1.0, cfg.RangeSigma)
	assert.Equal(t, 5, cfg.Radius)
	assert.NoError(t, cfg.Validate())

	bf := NewBilateralFilterDefault()
	assert.Equal(t, cfg, bf.Config())
	assert.Len(t, bf.DistanceWeights(), 11)
}

func TestNewBilateralFilterRejectsInvalidConfiguration(t *testing.T) {
	base := DefaultBilateralConfig()
	tests := []struct {
		name   string
		mutate func(*BilateralConfig)
	}{
		{"zero factor", func(c *BilateralConfig) { c.Factor = 0 }},
		{"positive factor", func(c *BilateralConfig) { c.Factor = 1 }},
		{"nan factor", func(c *BilateralConfig) { c.Factor = math.NaN() }},
		{"infinite factor", func(c *BilateralConfig) { c.Factor = math.Inf(-1) }},
		{"zero distance sigma", func(c *BilateralConfig) { c.DistanceSigma = 0 }},
		{"negative distance sigma", func(c *BilateralConfig) { c.DistanceSigma = -1 }},
		{"nan distance sigma", func(c *BilateralConfig) { c.DistanceSigma = math.NaN() }},
		{"zero range sigma", func(c *BilateralConfig) { c.RangeSigma = 0 }},
		{"infinite range sigma", func(c *BilateralConfig) { c.RangeSigma = math.Inf(1) }},
		{"negative radius", func(c *BilateralConfig) { c.Radius = -1 }},
		{"radius above bound", func(c *BilateralConfig) { c.Radius = MaxRadius + 1 }},
		{"unallocatable radius", func(c *BilateralConfig) { c.Radius = math.MaxInt / 2 }},
		{"negative workers", func(c *BilateralConfig) { c.Workers = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			bf, err := NewBilateralFilter(cfg)
			assert.Nil(t, bf)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestDistanceWeightTable(t *testing.T) {
	bf := mustFilter(t, BilateralConfig{Factor: -0.5, DistanceSigma: 2, RangeSigma: 1, Radius: 4})

	table := bf.DistanceWeights()
	require.Len(t, table, 9)
	for offset := -4; offset <= 4; offset++ {
		d := float64(offset) / 2
		assert.Equal(t, math.Exp(d*d*-0.5), table[offset+4])
		assert.Equal(t, table[offset+4], bf.DistanceWeight(offset))
	}
	assert.Equal(t, 0.0, bf.DistanceWeight(5))

	// strictly decreasing with |offset|
	for k := 1; k <= 4; k++ {
		assert.Less(t, bf.DistanceWeight(k), bf.DistanceWeight(k-1))
		assert.Less(t, bf.DistanceWeight(-k), bf.DistanceWeight(-k+1))
	}

	table[4] = 99
	assert.Equal(t, 1.0, bf.DistanceWeight(0), "table must not be writable through the copy")
}

func TestRangeWeight(t *testing.T) {
	bf := mustFilter(t, BilateralConfig{Factor: -0.5, DistanceSigma: 1, RangeSigma: 0.5, Radius: 1})

	assert.Equal(t, 1.0, bf.RangeWeight(0))
	assert.Equal(t, bf.RangeWeight(0.3), bf.RangeWeight(-0.3))
	assert.InDelta(t, math.Exp(-0.5*4), bf.RangeWeight(1), 1e-15)
	assert.Less(t, bf.RangeWeight(2), bf.RangeWeight(1))
}

func TestFilterPreservesShape(t *testing.T) {
	bf := NewBilateralFilterDefault()

	shapes := [][]int{{7}, {7, 1}, {7, 3}, {6, 2, 3}, {4, 2, 2, 2}, {1, 5}}
	for _, shape := range shapes {
		size := 1
		for _, n := range shape {
			size *= n
		}
		data := make([]float64, size)
		for i := range data {
			data[i] = float64(i%5) * 0.3
		}

		sig, err := NewSignal(data, shape...)
		require.NoError(t, err)

		out, err := bf.Filter(sig)
		require.NoError(t, err)
		assert.Equal(t, shape, out.Shape())
		assert.Equal(t, sig.Len(), out.Len())
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	bf := NewBilateralFilterDefault()
	rows := noisyRows(1, 20, 3)

	sig, err := SignalFromRows(rows)
	require.NoError(t, err)
	before := sig.Data()

	_, err = bf.Filter(sig)
	require.NoError(t, err)
	assert.Equal(t, before, sig.Data())
}

func TestFilterVectorMatchesSingleColumn(t *testing.T) {
	bf := NewBilateralFilterDefault()
	values := []float64{0, 2.1, 1.7, 2.2, 1.9, 2.1, 5, 10, 5, 2.2, 1.9, 1.95, 2.04, 1.99, 2.10, 1.98}

	vec, err := bf.FilterVector(values)
	require.NoError(t, err)

	column := make([][]float64, len(values))
	for i, v := range values {
		column[i] = []float64{v}
	}
	rows, err := bf.FilterRows(column)
	require.NoError(t, err)

	require.Len(t, rows, len(values))
	for i := range values {
		assert.Equal(t, vec[i], rows[i][0])
	}
}

func TestFilterConstantSignalIsFixedPoint(t *testing.T) {
	bf := mustFilter(t, BilateralConfig{Factor: -0.5, DistanceSigma: 1.5, RangeSigma: 0.7, Radius: 4})

	rows := make([][]float64, 12)
	for i := range rows {
		rows[i] = []float64{3.25, -1, 0}
	}

	out, err := bf.FilterRows(rows)
	require.NoError(t, err)
	for i := range out {
		assert.InDelta(t, 3.25, out[i][0], 1e-12)
		assert.InDelta(t, -1.0, out[i][1], 1e-12)
		assert.InDelta(t, 0.0, out[i][2], 1e-12)
	}
}

func TestFilterRadiusZeroIsIdentity(t *testing.T) {
	bf := mustFilter(t, BilateralConfig{Factor: -0.5, DistanceSigma: 1, RangeSigma: 1, Radius: 0})
	rows := noisyRows(7, 15, 4)

	out, err := bf.FilterRows(rows)
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestFilterBoundaryUsesOnlyInRangeFrames(t *testing.T) {
	cfg := BilateralConfig{Factor: -0.5, DistanceSigma: 1.3, RangeSigma: 0.8, Radius: 3}
	bf := mustFilter(t, cfg)
	values := []float64{1.0, 1.4, 0.6, 2.0, 1.1}

	out, err := bf.FilterVector(values)
	require.NoError(t, err)

	expected := func(i int) float64 {
		mean, total := 0.0, 0.0
		for offset := -cfg.Radius; offset <= cfg.Radius; offset++ {
			j := i + offset
			if j < 0 || j >= len(values) {
				continue
			}
			dd := float64(offset) / cfg.DistanceSigma
			rd := (values[i] - values[j]) / cfg.RangeSigma
			w := math.Exp(cfg.Factor*dd*dd) * math.Exp(cfg.Factor*rd*rd)
			mean += w * values[j]
			total += w
		}
		return mean / total
	}

	// frame 0 sees offsets {0,1,2,3} only
	mean, total := 0.0, 0.0
	for offset := 0; offset <= 3; offset++ {
		dd := float64(offset) / cfg.DistanceSigma
		rd := (values[0] - values[offset]) / cfg.RangeSigma
		w := math.Exp(cfg.Factor*dd*dd) * math.Exp(cfg.Factor*rd*rd)
		mean += w * values[offset]
		total += w
	}
	assert.InDelta(t, mean/total, out[0], 1e-12)

	for i := range values {
		assert.InDelta(t, expected(i), out[i], 1e-12, "frame %d", i)
	}

	// zero padding would pull the edge toward 0
	assert.Greater(t, out[0], 0.9)
}

func TestFilterSuppressesOutlier(t *testing.T) {
	bf := mustFilter(t, BilateralConfig{Factor: -0.5, DistanceSigma: 1, RangeSigma: 2, Radius: 2})
	values := []float64{2, 2, 2, 2, 2, 10, 2, 2, 2, 2, 2}

	out, err := bf.FilterVector(values)
	require.NoError(t, err)

	assert.Less(t, math.Abs(out[5]-2), math.Abs(values[5]-2))
	assert.InDelta(t, 2.0, out[0], 1e-12)
	assert.InDelta(t, 2.0, out[10], 1e-12)
}

func TestFilterPreservesStep(t *testing.T) {
	bf := mustFilter(t, BilateralConfig{Factor: -0.5, DistanceSigma: 2, RangeSigma: 0.1, Radius: 4})
	values := []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}

	out, err := bf.FilterVector(values)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out[4], 1e-6)
	assert.InDelta(t, 1.0, out[5], 1e-6)
}

func TestFilterSingleFrame(t *testing.T) {
	bf := NewBilateralFilterDefault()

	out, err := bf.FilterRows([][]float64{{0.5, -2, 7}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, -2, 7}}, out)
}

func TestFilterIsDeterministic(t *testing.T) {
	bf := NewBilateralFilterDefault()
	rows := noisyRows(3, 64, 5)

	first, err := bf.FilterRows(rows)
	require.NoError(t, err)
	for range 5 {
		again, err := bf.FilterRows(rows)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFilterParallelMatchesSerial(t *testing.T) {
	serialCfg := DefaultBilateralConfig()
	parallelCfg := serialCfg
	parallelCfg.Workers = 4

	serial := mustFilter(t, serialCfg)
	sig, err := SignalFromRows(noisyRows(11, 101, 47))
	require.NoError(t, err)

	want, err := serial.Filter(sig)
	require.NoError(t, err)

	for _, workers := range []int{2, 4, 7, 200} {
		parallelCfg.Workers = workers
		got, err := mustFilter(t, parallelCfg).Filter(sig)
		require.NoError(t, err)
		assert.Equal(t, want.Data(), got.Data(), "workers=%d", workers)
	}
}

func TestFilterConcurrentUse(t *testing.T) {
	bf := NewBilateralFilterDefault()
	sig, err := SignalFromRows(noisyRows(5, 40, 3))
	require.NoError(t, err)
	want, err := bf.Filter(sig)
	require.NoError(t, err)

	done := make(chan []float64, 8)
	for range 8 {
		go func() {
			out, err := bf.Filter(sig)
			if err != nil {
				done <- nil
				return
			}
			done <- out.Data()
		}()
	}
	for range 8 {
		assert.Equal(t, want.Data(), <-done)
	}
}

func TestFilterErrors(t *testing.T) {
	bf := NewBilateralFilterDefault()

	_, err := bf.Filter(nil)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = bf.Filter(&Signal{})
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = bf.FilterVector(nil)
	assert.ErrorIs(t, err, ErrEmptySignal)

	_, err = bf.FilterRows([][]float64{})
	assert.ErrorIs(t, err, ErrEmptySignal)

	_, err = bf.FilterRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrInvalidShape)

	// the filter stays usable after a failed call
	out, err := bf.FilterVector([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestFilterDense(t *testing.T) {
	bf := NewBilateralFilterDefault()
	rows := noisyRows(9, 10, 2)

	m := mat.NewDense(10, 2, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}

	got, err := bf.FilterDense(m)
	require.NoError(t, err)
	want, err := bf.FilterRows(rows)
	require.NoError(t, err)

	r, c := got.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 2, c)
	for i := range want {
		assert.Equal(t, want[i], got.RawRowView(i))
	}

	_, err = bf.FilterDense(&mat.Dense{})
	assert.ErrorIs(t, err, ErrEmptySignal)
}
