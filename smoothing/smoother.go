package smoothing

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-smooth/algorithms/filters"
	"github.com/RyanBlaney/sonido-smooth/algorithms/stats"
	"github.com/RyanBlaney/sonido-smooth/logging"
	"github.com/RyanBlaney/sonido-smooth/smoothing/config"
	"github.com/RyanBlaney/sonido-smooth/transcode"
)

// Result holds a smoothed sequence and, when enabled, its report
type Result struct {
	Signal  *filters.Signal        `json:"-"`
	Report  *stats.SmoothingReport `json:"report,omitempty"`
	Elapsed time.Duration          `json:"elapsed"`
}

// Smoother runs coefficient sequences through the bilateral filter
type Smoother struct {
	config  *config.Config
	filter  *filters.BilateralFilter
	decoder *transcode.Decoder
	encoder *transcode.Encoder
	logger  logging.Logger
}

// NewSmoother creates a smoother from configuration, DefaultConfig when nil
func NewSmoother(cfg *config.Config) (*Smoother, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	filter, err := filters.NewBilateralFilter(cfg.Filter.Bilateral())
	if err != nil {
		return nil, err
	}

	return &Smoother{
		config:  cfg,
		filter:  filter,
		decoder: transcode.NewDecoder(cfg.DecoderConfig()),
		encoder: transcode.NewEncoder(cfg.EncoderConfig()),
		logger: logging.WithFields(logging.Fields{
			"component": "smoother",
		}),
	}, nil
}

// Filter returns the configured bilateral filter
func (s *Smoother) Filter() *filters.BilateralFilter {
	return s.filter
}

// Config returns the smoother's configuration
func (s *Smoother) Config() *config.Config {
	return s.config
}

// Smooth filters a signal, attaching a report when enabled in the configuration
func (s *Smoother) Smooth(ctx context.Context, signal *filters.Signal) (*Result, error) {
	return s.smooth(ctx, s.filter, signal, s.config.Report.Enabled)
}

// SmoothWith filters a signal using a different filter, sharing the
// smoother's logging and report settings
func (s *Smoother) SmoothWith(ctx context.Context, filter *filters.BilateralFilter, signal *filters.Signal, withReport bool) (*Result, error) {
	if filter == nil {
		filter = s.filter
	}
	return s.smooth(ctx, filter, signal, withReport || s.config.Report.Enabled)
}

func (s *Smoother) smooth(ctx context.Context, filter *filters.BilateralFilter, signal *filters.Signal, withReport bool) (*Result, error) {
	logger := s.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Smooth",
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	filtered, err := filter.Filter(signal)
	if err != nil {
		logger.Error(err, "Failed to filter signal")
		return nil, err
	}

	result := &Result{Signal: filtered}

	if withReport {
		report, err := stats.CompareSmoothingWithCutoff(signal, filtered, s.config.Report.HighFrequencyCutoff)
		if err != nil {
			logger.Error(err, "Failed to build smoothing report")
			return nil, err
		}
		result.Report = report
	}
	result.Elapsed = time.Since(start)

	cfg := filter.Config()
	logger.Debug("Signal smoothed", logging.Fields{
		"shape":       filtered.Shape(),
		"radius":      cfg.Radius,
		"range_sigma": cfg.RangeSigma,
		"elapsed_ms":  result.Elapsed.Milliseconds(),
	})

	return result, nil
}

// LoadSignal decodes a sequence file with the configured decoder
func (s *Smoother) LoadSignal(path string) (*filters.Signal, error) {
	return s.decoder.DecodeFile(path)
}

// SmoothFile decodes input, smooths it and, when output is not empty,
// encodes the result there
func (s *Smoother) SmoothFile(ctx context.Context, input, output string) (*Result, error) {
	logger := s.logger.WithFields(logging.Fields{
		"function": "SmoothFile",
		"input":    input,
		"output":   output,
	})

	signal, err := s.decoder.DecodeFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to load sequence: %w", err)
	}

	result, err := s.Smooth(ctx, signal)
	if err != nil {
		return nil, err
	}

	if output != "" {
		if err := s.encoder.EncodeFile(output, result.Signal); err != nil {
			return nil, fmt.Errorf("failed to write sequence: %w", err)
		}
	}

	logger.Info("Sequence smoothed", logging.Fields{
		"frames":   signal.Frames(),
		"channels": signal.Channels(),
	})
	return result, nil
}

// SaveSignal encodes a signal to path with the configured encoder
func (s *Smoother) SaveSignal(path string, signal *filters.Signal) error {
	return s.encoder.EncodeFile(path, signal)
}
