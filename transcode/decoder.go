package transcode

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-smooth/algorithms/filters"
	"github.com/RyanBlaney/sonido-smooth/logging"
	"gopkg.in/yaml.v3"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	Format    Format `json:"format" yaml:"format"`         // empty: infer from file extension
	HasHeader bool   `json:"has_header" yaml:"has_header"` // CSV: first row holds channel names
	Comma     rune   `json:"comma" yaml:"comma"`           // CSV: field separator, ',' when zero
	Shape     []int  `json:"shape" yaml:"shape"`           // f64le: trailing dims per frame, [1] when empty
	MaxFrames int    `json:"max_frames" yaml:"max_frames"` // keep only the first N frames, 0 = no limit
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Comma: ',',
	}
}

// Decoder reads coefficient sequences into signals
type Decoder struct {
	config *DecoderConfig
}

// shapedSequence is the explicit-shape layout accepted by JSON and YAML
type shapedSequence struct {
	Shape []int     `json:"shape" yaml:"shape"`
	Data  []float64 `json:"data" yaml:"data"`
}

// NewDecoder creates a new sequence decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes a sequence file, resolving the format from the config
// or the file extension
func (d *Decoder) DecodeFile(path string) (*filters.Signal, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "sequence_decoder",
		"function":  "DecodeFile",
		"path":      path,
	})

	format, err := resolve(d.config.Format, path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sequence file: %w", err)
	}
	defer f.Close()

	signal, err := d.Decode(f, format)
	if err != nil {
		logger.Error(err, "Failed to decode sequence file")
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Debug("Sequence decoded", logging.Fields{
		"format": format,
		"shape":  signal.Shape(),
	})
	return signal, nil
}

// Decode reads a sequence in the given format
func (d *Decoder) Decode(r io.Reader, format Format) (*filters.Signal, error) {
	var (
		signal *filters.Signal
		err    error
	)

	switch format {
	case FormatJSON:
		signal, err = d.decodeJSON(r)
	case FormatYAML:
		signal, err = d.decodeYAML(r)
	case FormatCSV:
		signal, err = d.decodeCSV(r)
	case FormatF64LE:
		signal, err = d.decodeF64LE(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return d.truncate(signal)
}

func (d *Decoder) truncate(signal *filters.Signal) (*filters.Signal, error) {
	if d.config.MaxFrames <= 0 || signal.Frames() <= d.config.MaxFrames {
		return signal, nil
	}

	shape := signal.Shape()
	shape[0] = d.config.MaxFrames
	data := signal.Data()[:d.config.MaxFrames*signal.Channels()]
	return filters.NewSignal(data, shape...)
}

func (d *Decoder) decodeJSON(r io.Reader) (*filters.Signal, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}

	if _, ok := v.(map[string]any); ok {
		var seq shapedSequence
		if err := json.Unmarshal(raw, &seq); err != nil {
			return nil, fmt.Errorf("%w: %v", filters.ErrInvalidShape, err)
		}
		return seq.signal()
	}
	return filters.SignalFromNested(v)
}

func (d *Decoder) decodeYAML(r io.Reader) (*filters.Signal, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read yaml: %w", err)
	}

	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if _, ok := v.(map[string]any); ok {
		var seq shapedSequence
		if err := yaml.Unmarshal(raw, &seq); err != nil {
			return nil, fmt.Errorf("%w: %v", filters.ErrInvalidShape, err)
		}
		return seq.signal()
	}
	return filters.SignalFromNested(v)
}

func (s shapedSequence) signal() (*filters.Signal, error) {
	if len(s.Shape) == 0 {
		// A bare data list is a single channel sequence.
		return filters.SignalFromVector(s.Data)
	}
	return filters.NewSignal(s.Data, s.Shape...)
}

func (d *Decoder) decodeCSV(r io.Reader) (*filters.Signal, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are reported as ErrInvalidShape below
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	if d.config.Comma != 0 {
		reader.Comma = d.config.Comma
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if d.config.HasHeader && len(records) > 0 {
		records = records[1:]
	}

	rows := make([][]float64, len(records))
	for t, record := range records {
		rows[t] = make([]float64, len(record))
		for c, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: frame %d column %d: %q is not a number",
					filters.ErrInvalidShape, t, c, field)
			}
			rows[t][c] = v
		}
	}

	return filters.SignalFromRows(rows)
}

func (d *Decoder) decodeF64LE(r io.Reader) (*filters.Signal, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read f64le stream: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("%w: stream length %d is not a multiple of 8 bytes",
			filters.ErrInvalidShape, len(raw))
	}

	values := make([]float64, len(raw)/8)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read f64le stream: %w", err)
	}

	channels := 1
	for _, n := range d.config.Shape {
		if n <= 0 {
			return nil, fmt.Errorf("%w: invalid trailing shape %v", filters.ErrInvalidShape, d.config.Shape)
		}
		hi, lo := bits.Mul(uint(channels), uint(n))
		if hi != 0 || lo > math.MaxInt {
			return nil, fmt.Errorf("%w: trailing shape %v overflows", filters.ErrInvalidShape, d.config.Shape)
		}
		channels = int(lo)
	}
	if len(values)%channels != 0 {
		return nil, fmt.Errorf("%w: %d values do not divide into frames of %d channels",
			filters.ErrInvalidShape, len(values), channels)
	}

	shape := append([]int{len(values) / channels}, d.config.Shape...)
	return filters.NewSignal(values, shape...)
}

// finite reports whether every value can be written to text formats
// without loss
func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
