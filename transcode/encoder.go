package transcode

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/RyanBlaney/sonido-smooth/algorithms/filters"
	"github.com/RyanBlaney/sonido-smooth/logging"
	"gopkg.in/yaml.v3"
)

// EncoderConfig holds encoder configuration
type EncoderConfig struct {
	Format     Format `json:"format" yaml:"format"`           // empty: infer from file extension
	Indent     bool   `json:"indent" yaml:"indent"`           // JSON: pretty-print
	WithHeader bool   `json:"with_header" yaml:"with_header"` // CSV: write c0,c1,... header row
	Comma      rune   `json:"comma" yaml:"comma"`             // CSV: field separator, ',' when zero
}

// DefaultEncoderConfig returns default encoder configuration
func DefaultEncoderConfig() *EncoderConfig {
	return &EncoderConfig{
		Comma: ',',
	}
}

// Encoder writes signals as coefficient sequences.
//
// JSON and YAML keep the signal's rank. CSV always writes the (frames,
// channels) view, so trailing axes are flattened. f64le writes the raw
// row-major values; the trailing shape must be supplied when decoding.
type Encoder struct {
	config *EncoderConfig
}

// NewEncoder creates a new sequence encoder
func NewEncoder(config *EncoderConfig) *Encoder {
	if config == nil {
		config = DefaultEncoderConfig()
	}
	return &Encoder{config: config}
}

// EncodeFile writes a signal to path, resolving the format from the config
// or the file extension
func (e *Encoder) EncodeFile(path string, signal *filters.Signal) error {
	logger := logging.WithFields(logging.Fields{
		"component": "sequence_encoder",
		"function":  "EncodeFile",
		"path":      path,
	})

	format, err := resolve(e.config.Format, path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sequence file: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := e.Encode(w, signal, format); err != nil {
		f.Close()
		os.Remove(path)
		logger.Error(err, "Failed to encode sequence file")
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write sequence file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close sequence file: %w", err)
	}

	logger.Debug("Sequence encoded", logging.Fields{
		"format": format,
		"shape":  signal.Shape(),
	})
	return nil
}

// Encode writes a signal in the given format
func (e *Encoder) Encode(w io.Writer, signal *filters.Signal, format Format) error {
	if signal == nil {
		return fmt.Errorf("%w: nil signal", filters.ErrInvalidShape)
	}

	switch format {
	case FormatJSON:
		return e.encodeJSON(w, signal)
	case FormatYAML:
		return e.encodeYAML(w, signal)
	case FormatCSV:
		return e.encodeCSV(w, signal)
	case FormatF64LE:
		return binary.Write(w, binary.LittleEndian, signal.Data())
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func (e *Encoder) encodeJSON(w io.Writer, signal *filters.Signal) error {
	if !finite(signal.Data()) {
		return fmt.Errorf("json cannot represent NaN or Inf values")
	}

	enc := json.NewEncoder(w)
	if e.config.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(signal.Nested())
}

func (e *Encoder) encodeYAML(w io.Writer, signal *filters.Signal) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(signal.Nested()); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

func (e *Encoder) encodeCSV(w io.Writer, signal *filters.Signal) error {
	writer := csv.NewWriter(w)
	if e.config.Comma != 0 {
		writer.Comma = e.config.Comma
	}

	channels := signal.Channels()
	record := make([]string, channels)

	if e.config.WithHeader {
		for c := range record {
			record[c] = "c" + strconv.Itoa(c)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	for t := range signal.Frames() {
		for c := range channels {
			record[c] = strconv.FormatFloat(signal.At(t, c), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
