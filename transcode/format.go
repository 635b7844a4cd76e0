package transcode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies an on-disk coefficient sequence encoding
type Format string

const (
	FormatJSON  Format = "json"  // nested arrays, or {"shape": [...], "data": [...]}
	FormatYAML  Format = "yaml"  // same layouts as JSON
	FormatCSV   Format = "csv"   // one frame per row, one channel per column
	FormatF64LE Format = "f64le" // raw little-endian float64 stream
)

// ErrUnknownFormat is returned when a format cannot be resolved
var ErrUnknownFormat = errors.New("unknown sequence format")

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatCSV, FormatF64LE:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath infers the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	case ".f64", ".bin":
		return FormatF64LE, nil
	}
	return "", fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, path)
}

// resolve picks an explicit format when set, otherwise infers from path
func resolve(explicit Format, path string) (Format, error) {
	if explicit != "" {
		return ParseFormat(string(explicit))
	}
	return FormatFromPath(path)
}
