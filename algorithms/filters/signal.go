package filters

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Signal is a rectangular array of real values whose leading axis is time.
//
// Values are stored row-major. Every trailing axis is treated as a channel
// index, so a signal of shape (T, A, B) is viewed as T frames of A*B
// independent channels. The (T, D) view is a stride computation over the
// same backing slice.
type Signal struct {
	data  []float64
	shape []int
}

// NewSignal creates a signal from row-major data and a shape whose first
// dimension is the number of frames. The data is copied.
func NewSignal(data []float64, shape ...int) (*Signal, error) {
	owned := make([]float64, len(data))
	copy(owned, data)
	return newSignal(owned, append([]int(nil), shape...))
}

// newSignal validates and wraps data without copying.
func newSignal(data []float64, shape []int) (*Signal, error) {
	s := &Signal{data: data, shape: shape}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// SignalFromVector creates a single-channel signal of shape (T,).
func SignalFromVector(values []float64) (*Signal, error) {
	return NewSignal(values, len(values))
}

// SignalFromRows creates a signal of shape (T, D) from one slice per frame.
// Rows of differing lengths are rejected with ErrInvalidShape.
func SignalFromRows(rows [][]float64) (*Signal, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySignal
	}

	channels := len(rows[0])
	data := make([]float64, 0, len(rows)*channels)
	for t, row := range rows {
		if len(row) != channels {
			return nil, fmt.Errorf("%w: frame %d has %d channels, frame 0 has %d",
				ErrInvalidShape, t, len(row), channels)
		}
		data = append(data, row...)
	}

	return newSignal(data, []int{len(rows), channels})
}

// SignalFromDense creates a (rows, cols) signal from a gonum matrix, one
// frame per row.
func SignalFromDense(m mat.Matrix) (*Signal, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrInvalidShape)
	}
	if d, ok := m.(*mat.Dense); ok && d.IsEmpty() {
		return nil, ErrEmptySignal
	}

	r, c := m.Dims()
	data := make([]float64, r*c)
	for i := range r {
		for j := range c {
			data[i*c+j] = m.At(i, j)
		}
	}

	return newSignal(data, []int{r, c})
}

// SignalFromNested builds a signal from arbitrarily nested slices, as
// produced by decoding JSON or YAML into an `any`. Leaves must be numeric
// and every level must be rectangular.
func SignalFromNested(v any) (*Signal, error) {
	w := &nestedWalker{rank: -1}
	if err := w.walk(v, 0); err != nil {
		return nil, err
	}

	if w.rank < 0 {
		// No leaf was reached: either [] or lists of empty lists.
		if len(w.shape) > 0 && w.shape[0] == 0 {
			return nil, ErrEmptySignal
		}
		return nil, fmt.Errorf("%w: no numeric elements", ErrInvalidShape)
	}
	if w.rank == 0 {
		return nil, fmt.Errorf("%w: scalar has no time axis", ErrInvalidShape)
	}

	return newSignal(w.data, w.shape)
}

type nestedWalker struct {
	shape []int
	data  []float64
	rank  int
}

func (w *nestedWalker) list(n, depth int) error {
	if w.rank >= 0 && depth >= w.rank {
		return fmt.Errorf("%w: unexpected nesting at depth %d", ErrInvalidShape, depth)
	}
	if depth == len(w.shape) {
		w.shape = append(w.shape, n)
		return nil
	}
	if w.shape[depth] != n {
		return fmt.Errorf("%w: ragged axis %d (%d vs %d)", ErrInvalidShape, depth, n, w.shape[depth])
	}
	return nil
}

func (w *nestedWalker) leaf(v float64, depth int) error {
	if w.rank < 0 {
		if depth != len(w.shape) {
			return fmt.Errorf("%w: scalar at depth %d, expected nesting", ErrInvalidShape, depth)
		}
		w.rank = depth
	} else if depth != w.rank {
		return fmt.Errorf("%w: scalar at depth %d, expected depth %d", ErrInvalidShape, depth, w.rank)
	}
	w.data = append(w.data, v)
	return nil
}

func (w *nestedWalker) walk(v any, depth int) error {
	switch x := v.(type) {
	case []any:
		if err := w.list(len(x), depth); err != nil {
			return err
		}
		for _, e := range x {
			if err := w.walk(e, depth+1); err != nil {
				return err
			}
		}
		return nil
	case []float64:
		if err := w.list(len(x), depth); err != nil {
			return err
		}
		for _, e := range x {
			if err := w.leaf(e, depth+1); err != nil {
				return err
			}
		}
		return nil
	case [][]float64:
		if err := w.list(len(x), depth); err != nil {
			return err
		}
		for _, row := range x {
			if err := w.walk(row, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("%w: element of type %T is not real-valued", ErrInvalidShape, v)
	}
	return w.leaf(f, depth)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func (s *Signal) validate() error {
	if len(s.shape) == 0 {
		return fmt.Errorf("%w: signal needs at least one dimension", ErrInvalidShape)
	}
	if s.shape[0] == 0 {
		return ErrEmptySignal
	}

	size := 1
	for axis, n := range s.shape {
		if n <= 0 {
			return fmt.Errorf("%w: axis %d has length %d", ErrInvalidShape, axis, n)
		}
		// size*n would exceed the data, and may overflow int.
		if size > len(s.data)/n {
			return fmt.Errorf("%w: shape %v holds more than %d values", ErrInvalidShape, s.shape, len(s.data))
		}
		size *= n
	}
	if size != len(s.data) {
		return fmt.Errorf("%w: shape %v holds %d values, got %d", ErrInvalidShape, s.shape, size, len(s.data))
	}
	return nil
}

// Frames returns T, the length of the time axis.
func (s *Signal) Frames() int {
	return s.shape[0]
}

// Channels returns D, the product of all trailing dimensions (1 for rank 1).
func (s *Signal) Channels() int {
	return len(s.data) / s.shape[0]
}

// Len returns the total number of elements.
func (s *Signal) Len() int {
	return len(s.data)
}

// Rank returns the number of axes.
func (s *Signal) Rank() int {
	return len(s.shape)
}

// Shape returns a copy of the signal's shape.
func (s *Signal) Shape() []int {
	return append([]int(nil), s.shape...)
}

// At returns the value of channel d at frame t in the (T, D) view.
func (s *Signal) At(t, d int) float64 {
	return s.data[t*s.Channels()+d]
}

// Row returns a copy of all channels at frame t.
func (s *Signal) Row(t int) []float64 {
	d := s.Channels()
	row := make([]float64, d)
	copy(row, s.data[t*d:(t+1)*d])
	return row
}

// Channel returns a copy of channel d across all frames.
func (s *Signal) Channel(d int) []float64 {
	channels := s.Channels()
	out := make([]float64, s.Frames())
	for t := range out {
		out[t] = s.data[t*channels+d]
	}
	return out
}

// Data returns a copy of the row-major values.
func (s *Signal) Data() []float64 {
	return append([]float64(nil), s.data...)
}

// Reshape returns a copy of the signal with a new shape holding the same
// number of elements.
func (s *Signal) Reshape(shape ...int) (*Signal, error) {
	return NewSignal(s.data, shape...)
}

// ToDense returns the (T, D) view as a gonum matrix.
func (s *Signal) ToDense() *mat.Dense {
	return mat.NewDense(s.Frames(), s.Channels(), s.Data())
}

// Nested rebuilds nested slices in the signal's original rank. The innermost
// axis is a []float64; outer axes are []any.
func (s *Signal) Nested() any {
	if len(s.shape) == 1 {
		return s.Data()
	}
	v, _ := nest(s.data, s.shape)
	return v
}

func nest(data []float64, shape []int) (any, []float64) {
	n := shape[0]
	if len(shape) == 1 {
		out := make([]float64, n)
		copy(out, data[:n])
		return out, data[n:]
	}

	out := make([]any, n)
	for i := range out {
		out[i], data = nest(data, shape[1:])
	}
	return out, data
}
