package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-smooth/algorithms/filters"
	"github.com/RyanBlaney/sonido-smooth/algorithms/stats"
	"github.com/RyanBlaney/sonido-smooth/logging"
	"github.com/RyanBlaney/sonido-smooth/transcode"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SONIDO_FILTER_RADIUS
const EnvPrefix = "SONIDO"

// Config is the complete smoothing configuration
type Config struct {
	Filter  FilterConfig  `yaml:"filter" envconfig:"FILTER"`
	IO      IOConfig      `yaml:"io" envconfig:"IO"`
	Report  ReportConfig  `yaml:"report" envconfig:"REPORT"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOG"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// FilterConfig configures the bilateral filter
type FilterConfig struct {
	Factor        float64 `yaml:"factor" envconfig:"FACTOR"`
	DistanceSigma float64 `yaml:"distance_sigma" envconfig:"DISTANCE_SIGMA"`
	RangeSigma    float64 `yaml:"range_sigma" envconfig:"RANGE_SIGMA"`
	Radius        int     `yaml:"radius" envconfig:"RADIUS"`
	Workers       int     `yaml:"workers" envconfig:"WORKERS"`
}

// IOConfig configures sequence decoding and encoding
type IOConfig struct {
	InputFormat  string `yaml:"input_format" envconfig:"INPUT_FORMAT"`   // empty: from extension
	OutputFormat string `yaml:"output_format" envconfig:"OUTPUT_FORMAT"` // empty: from extension
	CSVHeader    bool   `yaml:"csv_header" envconfig:"CSV_HEADER"`
	ChannelShape []int  `yaml:"channel_shape" envconfig:"CHANNEL_SHAPE"` // f64le trailing dims
	MaxFrames    int    `yaml:"max_frames" envconfig:"MAX_FRAMES"`
	Indent       bool   `yaml:"indent" envconfig:"INDENT"`
}

// ReportConfig configures the smoothing report
type ReportConfig struct {
	Enabled             bool    `yaml:"enabled" envconfig:"ENABLED"`
	HighFrequencyCutoff float64 `yaml:"high_frequency_cutoff" envconfig:"HIGH_FREQUENCY_CUTOFF"`
}

// LoggingConfig configures the global logger
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	Format     string `yaml:"format" envconfig:"FORMAT"` // text or json
	File       string `yaml:"file" envconfig:"FILE"`     // rotating log file, empty disables
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" envconfig:"COMPRESS"`
}

// ServerConfig configures the HTTP smoothing service
type ServerConfig struct {
	Address      string `yaml:"address" envconfig:"ADDRESS"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	ReleaseMode  bool   `yaml:"release_mode" envconfig:"RELEASE_MODE"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	bilateral := filters.DefaultBilateralConfig()

	return &Config{
		Filter: FilterConfig{
			Factor:        bilateral.Factor,
			DistanceSigma: bilateral.DistanceSigma,
			RangeSigma:    bilateral.RangeSigma,
			Radius:        bilateral.Radius,
			Workers:       1,
		},
		Report: ReportConfig{
			Enabled:             false,
			HighFrequencyCutoff: stats.DefaultHighFrequencyCutoff,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  5,
			MaxBackups: 10,
			MaxAgeDays: 30,
		},
		Server: ServerConfig{
			Address:      "127.0.0.1:8088",
			MaxBodyBytes: 32 << 20,
		},
	}
}

// Load reads a YAML file over the defaults, applies SONIDO_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// Override with env variables if they are passed in
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills empty optional values
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("cannot verify config, config is nil")
	}

	if err := c.Filter.Bilateral().Validate(); err != nil {
		return err
	}

	if c.IO.InputFormat != "" {
		if _, err := transcode.ParseFormat(c.IO.InputFormat); err != nil {
			return fmt.Errorf("io.input_format: %w", err)
		}
	}
	if c.IO.OutputFormat != "" {
		if _, err := transcode.ParseFormat(c.IO.OutputFormat); err != nil {
			return fmt.Errorf("io.output_format: %w", err)
		}
	}
	if c.IO.MaxFrames < 0 {
		return fmt.Errorf("io.max_frames must be non-negative, got %d", c.IO.MaxFrames)
	}

	if c.Report.HighFrequencyCutoff == 0 {
		c.Report.HighFrequencyCutoff = stats.DefaultHighFrequencyCutoff
	}
	if c.Report.HighFrequencyCutoff < 0 || c.Report.HighFrequencyCutoff >= 1 {
		return fmt.Errorf("report.high_frequency_cutoff must be in (0, 1), got %v", c.Report.HighFrequencyCutoff)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "":
		c.Logging.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Server.Address == "" {
		c.Server.Address = "127.0.0.1:8088"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 32 << 20
	}

	return nil
}

// Bilateral converts to the filter's own configuration type
func (f FilterConfig) Bilateral() filters.BilateralConfig {
	return filters.BilateralConfig{
		Factor:        f.Factor,
		DistanceSigma: f.DistanceSigma,
		RangeSigma:    f.RangeSigma,
		Radius:        f.Radius,
		Workers:       f.Workers,
	}
}

// DecoderConfig builds the sequence decoder configuration
func (c *Config) DecoderConfig() *transcode.DecoderConfig {
	dc := transcode.DefaultDecoderConfig()
	dc.Format = transcode.Format(c.IO.InputFormat)
	dc.HasHeader = c.IO.CSVHeader
	dc.Shape = append([]int(nil), c.IO.ChannelShape...)
	dc.MaxFrames = c.IO.MaxFrames
	return dc
}

// EncoderConfig builds the sequence encoder configuration
func (c *Config) EncoderConfig() *transcode.EncoderConfig {
	ec := transcode.DefaultEncoderConfig()
	ec.Format = transcode.Format(c.IO.OutputFormat)
	ec.WithHeader = c.IO.CSVHeader
	ec.Indent = c.IO.Indent
	return ec
}

// LoggerOptions builds logger options from the logging section
func (c *Config) LoggerOptions() (logging.Options, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.Options{}, err
	}

	return logging.Options{
		Level:      level,
		Format:     c.Logging.Format,
		FilePath:   c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}, nil
}

// YAML renders the configuration as YAML
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
