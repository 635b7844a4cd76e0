package filters

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewSignalValidation(t *testing.T) {
	tests := []struct {
		name  string
		data  []float64
		shape []int
		err   error
	}{
		{"rank 1", []float64{1, 2, 3}, []int{3}, nil},
		{"rank 3", make([]float64, 12), []int{2, 3, 2}, nil},
		{"no dimensions", []float64{1}, nil, ErrInvalidShape},
		{"zero frames", nil, []int{0}, ErrEmptySignal},
		{"zero frames with channels", nil, []int{0, 4}, ErrEmptySignal},
		{"zero channels", nil, []int{3, 0}, ErrInvalidShape},
		{"negative axis", []float64{1, 2}, []int{2, -1}, ErrInvalidShape},
		{"size mismatch", []float64{1, 2, 3}, []int{2, 2}, ErrInvalidShape},
		{"product wraps to data length", []float64{1, 2, 3, 4}, []int{1<<62 + 1, 4}, ErrInvalidShape},
		{"product overflows", []float64{1, 2}, []int{2, math.MaxInt, math.MaxInt}, ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSignal(tt.data, tt.shape...)
			if tt.err == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.shape, s.Shape())
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSignalViews(t *testing.T) {
	s, err := NewSignal([]float64{
		0, 1, 2, 3, 4, 5,
		6, 7, 8, 9, 10, 11,
	}, 2, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Frames())
	assert.Equal(t, 6, s.Channels())
	assert.Equal(t, 3, s.Rank())
	assert.Equal(t, 12, s.Len())
	assert.Equal(t, 9.0, s.At(1, 3))
	assert.Equal(t, []float64{6, 7, 8, 9, 10, 11}, s.Row(1))
	assert.Equal(t, []float64{2, 8}, s.Channel(2))

	dense := s.ToDense()
	r, c := dense.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 6, c)
	assert.Equal(t, 11.0, dense.At(1, 5))

	flat, err := s.Reshape(2, 6)
	require.NoError(t, err)
	assert.Equal(t, s.Data(), flat.Data())

	_, err = s.Reshape(5)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestNewSignalCopiesInput(t *testing.T) {
	data := []float64{1, 2, 3}
	s, err := NewSignal(data, 3)
	require.NoError(t, err)

	data[0] = 100
	assert.Equal(t, 1.0, s.At(0, 0))

	out := s.Data()
	out[1] = 100
	assert.Equal(t, 2.0, s.At(1, 0))
}

func TestSignalFromNestedJSON(t *testing.T) {
	var v any
	require.NoError(t, json.Unmarshal([]byte(`[[[1,2],[3,4]],[[5,6],[7,8]],[[9,10],[11,12]]]`), &v))

	s, err := SignalFromNested(v)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2}, s.Shape())
	assert.Equal(t, 4, s.Channels())
	assert.Equal(t, 7.0, s.At(1, 2))

	// round trip through Nested keeps the rank
	back, err := json.Marshal(s.Nested())
	require.NoError(t, err)
	assert.JSONEq(t, `[[[1,2],[3,4]],[[5,6],[7,8]],[[9,10],[11,12]]]`, string(back))
}

func TestSignalFromNestedYAMLIntegers(t *testing.T) {
	var v any
	require.NoError(t, yaml.Unmarshal([]byte("- [1, 2.5]\n- [3, 4]\n"), &v))

	s, err := SignalFromNested(v)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, s.Shape())
	assert.Equal(t, []float64{1, 2.5, 3, 4}, s.Data())
}

func TestSignalFromNestedTyped(t *testing.T) {
	s, err := SignalFromNested([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, s.Shape())

	s, err = SignalFromNested([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, s.Shape())
	assert.Equal(t, []any{[]float64{1, 2}, []float64{3, 4}, []float64{5, 6}}, s.Nested())
}

func TestSignalFromNestedErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"empty", `[]`, ErrEmptySignal},
		{"scalar", `3`, ErrInvalidShape},
		{"ragged", `[[1,2],[3]]`, ErrInvalidShape},
		{"mixed depth list first", `[[1,2],3]`, ErrInvalidShape},
		{"mixed depth scalar first", `[1,[2,3]]`, ErrInvalidShape},
		{"string leaf", `[[1,"a"]]`, ErrInvalidShape},
		{"bool leaf", `[true, false]`, ErrInvalidShape},
		{"null leaf", `[1, null]`, ErrInvalidShape},
		{"empty channels", `[[],[]]`, ErrInvalidShape},
		{"object", `{"a": 1}`, ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))
			_, err := SignalFromNested(v)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSignalFromRowsRagged(t *testing.T) {
	_, err := SignalFromRows([][]float64{{1}, {2, 3}})
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = SignalFromRows(nil)
	assert.ErrorIs(t, err, ErrEmptySignal)
}
