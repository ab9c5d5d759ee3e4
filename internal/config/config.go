// Package config loads server settings from the environment.
//
// Every setting has a default, so an empty environment yields a working
// configuration. Values may also come from dotenv files; variables already
// set in the process environment take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/hough-circles/internal/detection"
	"github.com/ironsheep/hough-circles/internal/imaging"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "HOUGH_"

// DefaultMaxImagePixels caps decoded images at 50 megapixels.
const DefaultMaxImagePixels = 50_000_000

// Config holds server configuration
type Config struct {
	// Logging
	LogLevel logrus.Level

	// Resource limits
	Workers        int
	MaxImagePixels int
	DenseCellLimit int

	// Detector behavior
	AccumulatorMode detection.AccumulatorMode
	Refine          bool

	// Params are the detection parameters used when a request leaves a
	// field unset.
	Params detection.DetectionParams
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		LogLevel:        logrus.InfoLevel,
		MaxImagePixels:  DefaultMaxImagePixels,
		DenseCellLimit:  detection.DefaultDenseCellLimit,
		AccumulatorMode: detection.AccumulatorAuto,
		Params:          detection.DefaultParams(),
	}
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFiles reads the configuration from the process environment, falling
// back to the given dotenv files in order. Missing files are skipped.
func LoadFiles(paths ...string) (*Config, error) {
	return LoadFilesWithDefaults(Default(), paths...)
}

// LoadFilesWithDefaults is LoadFiles with d supplying the value of every
// variable that is set nowhere. d is not modified.
func LoadFilesWithDefaults(d *Config, paths ...string) (*Config, error) {
	values := make(map[string]string)
	for _, path := range paths {
		m, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range m {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}
	return loadFrom(d, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	})
}

// LoadFrom reads the configuration through lookup, which has the signature
// of os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	return loadFrom(Default(), lookup)
}

func loadFrom(d *Config, lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}

	cfg := &Config{
		LogLevel:       e.levelVar("LOG_LEVEL", d.LogLevel),
		Workers:        e.intVar("WORKERS", d.Workers),
		MaxImagePixels: e.intVar("MAX_IMAGE_PIXELS", d.MaxImagePixels),
		DenseCellLimit: e.intVar("DENSE_CELL_LIMIT", d.DenseCellLimit),
		Refine:         e.boolVar("REFINE", d.Refine),
		Params: detection.DetectionParams{
			LowThreshold:         e.floatVar("LOW_THRESHOLD", d.Params.LowThreshold),
			HighThreshold:        e.floatVar("HIGH_THRESHOLD", d.Params.HighThreshold),
			RadiusMin:            e.intVar("RADIUS_MIN", d.Params.RadiusMin),
			RadiusMax:            e.intVar("RADIUS_MAX", d.Params.RadiusMax),
			RadiusStep:           e.intVar("RADIUS_STEP", d.Params.RadiusStep),
			AccumulatorThreshold: e.intVar("ACCUMULATOR_THRESHOLD", d.Params.AccumulatorThreshold),
			MinCenterDistance:    e.floatVar("MIN_CENTER_DISTANCE", d.Params.MinCenterDistance),
			BlurSigma:            e.floatVar("BLUR_SIGMA", d.Params.BlurSigma),
			Connectivity:         imaging.Connectivity(e.intVar("CONNECTIVITY", int(d.Params.Connectivity))),
		},
		AccumulatorMode: d.AccumulatorMode,
	}
	if raw, ok := e.get("ACCUMULATOR_MODE"); ok {
		mode, err := detection.ParseAccumulatorMode(strings.ToLower(raw))
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%sACCUMULATOR_MODE: %w", EnvPrefix, err))
		}
		cfg.AccumulatorMode = mode
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: %sWORKERS must be >= 0, got %d", detection.ErrInvalidConfig, EnvPrefix, c.Workers)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("%w: %sMAX_IMAGE_PIXELS must be > 0, got %d", detection.ErrInvalidConfig, EnvPrefix, c.MaxImagePixels)
	}
	if c.DenseCellLimit <= 0 {
		return fmt.Errorf("%w: %sDENSE_CELL_LIMIT must be > 0, got %d", detection.ErrInvalidConfig, EnvPrefix, c.DenseCellLimit)
	}
	return c.Params.Validate()
}

// DetectorOptions returns the detector options implied by the configuration.
func (c *Config) DetectorOptions() []detection.Option {
	return []detection.Option{
		detection.WithWorkers(c.Workers),
		detection.WithAccumulatorMode(c.AccumulatorMode),
		detection.WithDenseCellLimit(c.DenseCellLimit),
		detection.WithRefinement(c.Refine),
	}
}

// NewLogger returns a text logger writing to out at the configured level.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// env reads prefixed variables and collects parse errors.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) fail(name, raw, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s%s must be %s, got %q", detection.ErrInvalidConfig, EnvPrefix, name, kind, raw))
}

func (e *env) intVar(name string, def int) int {
	raw, ok := e.get(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(name, raw, "an integer")
		return def
	}
	return v
}

func (e *env) floatVar(name string, def float64) float64 {
	raw, ok := e.get(name)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.fail(name, raw, "a number")
		return def
	}
	return v
}

func (e *env) boolVar(name string, def bool) bool {
	raw, ok := e.get(name)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(name, raw, "a boolean")
		return def
	}
	return v
}

func (e *env) levelVar(name string, def logrus.Level) logrus.Level {
	raw, ok := e.get(name)
	if !ok {
		return def
	}
	v, err := logrus.ParseLevel(raw)
	if err != nil {
		e.fail(name, raw, "a log level")
		return def
	}
	return v
}
