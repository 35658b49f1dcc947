package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/stepcount/internal/stepcount"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// DefaultActivityWindow is the number of samples per activity feature
// vector.
const DefaultActivityWindow = 200

// TuningConfig is the JSON document holding step pipeline tuning. Every
// field is optional; the Get* accessors fall back to the calibrated
// defaults for anything left unset.
type TuningConfig struct {
	// Sampling and windowing
	SamplingRate  *float64 `json:"sampling_rate,omitempty"`  // Hz
	WindowSize    *int     `json:"window_size,omitempty"`    // samples
	SlideDuration *float64 `json:"slide_duration,omitempty"` // seconds

	// Energy gate
	NoiseBins        *int     `json:"noise_bins,omitempty"`
	CadenceBandStart *int     `json:"cadence_band_start,omitempty"`
	CadenceBandBins  *int     `json:"cadence_band_bins,omitempty"`
	EnergyFloor      *float64 `json:"energy_floor,omitempty"`

	// Peak search
	FrequencyMin  *float64 `json:"frequency_min,omitempty"`
	FrequencyMax  *float64 `json:"frequency_max,omitempty"`
	FrequencyStep *float64 `json:"frequency_step,omitempty"`
	DerivativeMin *float64 `json:"derivative_min,omitempty"`
	DerivativeMax *float64 `json:"derivative_max,omitempty"`
	BinOffset     *float64 `json:"bin_offset,omitempty"`

	ProcessTimeout *string `json:"process_timeout,omitempty"` // duration string like "2s"
	ActivityWindow *int    `json:"activity_window,omitempty"` // samples
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a fully populated config holding the
// calibrated defaults.
func DefaultTuningConfig() *TuningConfig {
	d := stepcount.DefaultConfig()
	return &TuningConfig{
		SamplingRate:     ptrFloat64(d.SamplingRate),
		WindowSize:       ptrInt(d.WindowSize),
		SlideDuration:    ptrFloat64(d.SlideDuration),
		NoiseBins:        ptrInt(d.NoiseBins),
		CadenceBandStart: ptrInt(d.BandStart),
		CadenceBandBins:  ptrInt(d.BandBins),
		EnergyFloor:      ptrFloat64(d.EnergyFloor),
		FrequencyMin:     ptrFloat64(d.FrequencyMin),
		FrequencyMax:     ptrFloat64(d.FrequencyMax),
		FrequencyStep:    ptrFloat64(d.FrequencyStep),
		DerivativeMin:    ptrFloat64(d.DerivativeMin),
		DerivativeMax:    ptrFloat64(d.DerivativeMax),
		BinOffset:        ptrFloat64(d.BinOffset),
		ProcessTimeout:   ptrString(d.ProcessTimeout.String()),
		ActivityWindow:   ptrInt(DefaultActivityWindow),
	}
}

// LoadTuningConfig loads and validates a tuning file. Only .json files up
// to 1 MiB are accepted.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FindDefaultConfig looks for DefaultConfigPath in the working directory
// and its parents, so binaries and tests find the file wherever they run.
func FindDefaultConfig() (string, error) {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("cannot find %s", DefaultConfigPath)
}

// Validate checks field-level constraints and then the assembled
// pipeline configuration.
func (c *TuningConfig) Validate() error {
	if c.ProcessTimeout != nil && *c.ProcessTimeout != "" {
		if _, err := time.ParseDuration(*c.ProcessTimeout); err != nil {
			return fmt.Errorf("invalid process_timeout '%s': %w", *c.ProcessTimeout, err)
		}
	}
	if c.ActivityWindow != nil && *c.ActivityWindow < 2 {
		return fmt.Errorf("activity_window must be at least 2, got %d", *c.ActivityWindow)
	}
	if err := c.PipelineConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// PipelineConfig assembles the immutable pipeline configuration.
func (c *TuningConfig) PipelineConfig() stepcount.Config {
	return stepcount.Config{
		SamplingRate:   c.GetSamplingRate(),
		WindowSize:     c.GetWindowSize(),
		SlideDuration:  c.GetSlideDuration(),
		NoiseBins:      c.GetNoiseBins(),
		BandStart:      c.GetCadenceBandStart(),
		BandBins:       c.GetCadenceBandBins(),
		EnergyFloor:    c.GetEnergyFloor(),
		FrequencyMin:   c.GetFrequencyMin(),
		FrequencyMax:   c.GetFrequencyMax(),
		FrequencyStep:  c.GetFrequencyStep(),
		DerivativeMin:  c.GetDerivativeMin(),
		DerivativeMax:  c.GetDerivativeMax(),
		BinOffset:      c.GetBinOffset(),
		ProcessTimeout: c.GetProcessTimeout(),
	}
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

var defaults = stepcount.DefaultConfig()

func (c *TuningConfig) GetSamplingRate() float64 { return getFloat(c.SamplingRate, defaults.SamplingRate) }
func (c *TuningConfig) GetWindowSize() int       { return getInt(c.WindowSize, defaults.WindowSize) }
func (c *TuningConfig) GetSlideDuration() float64 {
	return getFloat(c.SlideDuration, defaults.SlideDuration)
}
func (c *TuningConfig) GetNoiseBins() int        { return getInt(c.NoiseBins, defaults.NoiseBins) }
func (c *TuningConfig) GetCadenceBandStart() int { return getInt(c.CadenceBandStart, defaults.BandStart) }
func (c *TuningConfig) GetCadenceBandBins() int  { return getInt(c.CadenceBandBins, defaults.BandBins) }
func (c *TuningConfig) GetEnergyFloor() float64  { return getFloat(c.EnergyFloor, defaults.EnergyFloor) }
func (c *TuningConfig) GetFrequencyMin() float64 { return getFloat(c.FrequencyMin, defaults.FrequencyMin) }
func (c *TuningConfig) GetFrequencyMax() float64 { return getFloat(c.FrequencyMax, defaults.FrequencyMax) }
func (c *TuningConfig) GetFrequencyStep() float64 {
	return getFloat(c.FrequencyStep, defaults.FrequencyStep)
}
func (c *TuningConfig) GetDerivativeMin() float64 {
	return getFloat(c.DerivativeMin, defaults.DerivativeMin)
}
func (c *TuningConfig) GetDerivativeMax() float64 {
	return getFloat(c.DerivativeMax, defaults.DerivativeMax)
}
func (c *TuningConfig) GetBinOffset() float64 { return getFloat(c.BinOffset, defaults.BinOffset) }

// GetProcessTimeout parses ProcessTimeout. An unset or unparsable value
// yields the default; "0s" disables the timeout.
func (c *TuningConfig) GetProcessTimeout() time.Duration {
	if c.ProcessTimeout == nil || *c.ProcessTimeout == "" {
		return defaults.ProcessTimeout
	}
	d, err := time.ParseDuration(*c.ProcessTimeout)
	if err != nil {
		return defaults.ProcessTimeout
	}
	return d
}

// GetActivityWindow returns the activity feature window in samples.
func (c *TuningConfig) GetActivityWindow() int {
	return getInt(c.ActivityWindow, DefaultActivityWindow)
}
