package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PipelineTuning represents the tunable thresholds of the trace import
// pipeline. All fields are optional; anything omitted from the JSON falls
// back to the built-in default via the Get* accessors, so partial configs
// are safe.
type PipelineTuning struct {
	// Deduplication params
	DuplicateGapSeconds *int64 `json:"duplicate_gap_seconds,omitempty"`

	// Noise gate params
	MaxGapSeconds    *int64   `json:"max_gap_seconds,omitempty"`
	MaxStepMeters    *float64 `json:"max_step_meters,omitempty"`
	DriftFloorMeters *float64 `json:"drift_floor_meters,omitempty"`

	// Rolling window sizes, in points. LongWindow also sets the extended
	// lag depth and the number of warm-up points excluded from output.
	ShortWindow    *int `json:"short_window,omitempty"`
	LongWindow     *int `json:"long_window,omitempty"`
	DistanceWindow *int `json:"distance_window,omitempty"`

	// Classifier params
	StopSpeed        *float64 `json:"stop_speed,omitempty"`
	StopRadiusMeters *float64 `json:"stop_radius_meters,omitempty"`
	CruiseBand       *float64 `json:"cruise_band,omitempty"`
	TrendBand        *float64 `json:"trend_band,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyPipelineTuning returns a PipelineTuning with all fields set to nil,
// meaning built-in defaults throughout.
func EmptyPipelineTuning() *PipelineTuning {
	return &PipelineTuning{}
}

// LoadPipelineTuning loads a PipelineTuning from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadPipelineTuning(path string) (*PipelineTuning, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyPipelineTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *PipelineTuning) Validate() error {
	if c.DuplicateGapSeconds != nil && *c.DuplicateGapSeconds <= 0 {
		return fmt.Errorf("duplicate_gap_seconds must be positive, got %d", *c.DuplicateGapSeconds)
	}

	if c.MaxGapSeconds != nil && *c.MaxGapSeconds <= 0 {
		return fmt.Errorf("max_gap_seconds must be positive, got %d", *c.MaxGapSeconds)
	}

	if c.MaxStepMeters != nil && *c.MaxStepMeters <= 0 {
		return fmt.Errorf("max_step_meters must be positive, got %f", *c.MaxStepMeters)
	}

	if c.DriftFloorMeters != nil && *c.DriftFloorMeters < 0 {
		return fmt.Errorf("drift_floor_meters must be non-negative, got %f", *c.DriftFloorMeters)
	}

	if c.ShortWindow != nil && *c.ShortWindow < 1 {
		return fmt.Errorf("short_window must be at least 1, got %d", *c.ShortWindow)
	}

	shortWin := c.GetShortWindow()
	longWin := c.GetLongWindow()
	distWin := c.GetDistanceWindow()
	if longWin <= shortWin {
		return fmt.Errorf("long_window (%d) must exceed short_window (%d)", longWin, shortWin)
	}
	if distWin < longWin {
		return fmt.Errorf("distance_window (%d) must be at least long_window (%d)", distWin, longWin)
	}

	if c.StopSpeed != nil && *c.StopSpeed <= 0 {
		return fmt.Errorf("stop_speed must be positive, got %f", *c.StopSpeed)
	}

	if c.StopRadiusMeters != nil && *c.StopRadiusMeters < 0 {
		return fmt.Errorf("stop_radius_meters must be non-negative, got %f", *c.StopRadiusMeters)
	}

	if c.CruiseBand != nil && (*c.CruiseBand <= 0 || *c.CruiseBand >= 1) {
		return fmt.Errorf("cruise_band must be between 0 and 1, got %f", *c.CruiseBand)
	}

	if c.TrendBand != nil && (*c.TrendBand <= 0 || *c.TrendBand >= 1) {
		return fmt.Errorf("trend_band must be between 0 and 1, got %f", *c.TrendBand)
	}

	return nil
}

// GetDuplicateGapSeconds returns the duplicate_gap_seconds value or the default.
func (c *PipelineTuning) GetDuplicateGapSeconds() int64 {
	if c.DuplicateGapSeconds == nil {
		return 10 // default
	}
	return *c.DuplicateGapSeconds
}

// GetMaxGapSeconds returns the max_gap_seconds value or the default.
func (c *PipelineTuning) GetMaxGapSeconds() int64 {
	if c.MaxGapSeconds == nil {
		return 3600 // default: one hour
	}
	return *c.MaxGapSeconds
}

// GetMaxStepMeters returns the max_step_meters value or the default.
func (c *PipelineTuning) GetMaxStepMeters() float64 {
	if c.MaxStepMeters == nil {
		return 500 // default
	}
	return *c.MaxStepMeters
}

// GetDriftFloorMeters returns the drift_floor_meters value or the default.
func (c *PipelineTuning) GetDriftFloorMeters() float64 {
	if c.DriftFloorMeters == nil {
		return 1.0 // default
	}
	return *c.DriftFloorMeters
}

// GetShortWindow returns the short_window value or the default.
func (c *PipelineTuning) GetShortWindow() int {
	if c.ShortWindow == nil {
		return 10 // default
	}
	return *c.ShortWindow
}

// GetLongWindow returns the long_window value or the default.
func (c *PipelineTuning) GetLongWindow() int {
	if c.LongWindow == nil {
		return 60 // default
	}
	return *c.LongWindow
}

// GetDistanceWindow returns the distance_window value or the default.
func (c *PipelineTuning) GetDistanceWindow() int {
	if c.DistanceWindow == nil {
		return 600 // default
	}
	return *c.DistanceWindow
}

// GetStopSpeed returns the stop_speed value or the default.
func (c *PipelineTuning) GetStopSpeed() float64 {
	if c.StopSpeed == nil {
		return 2.0 // default, m/s
	}
	return *c.StopSpeed
}

// GetStopRadiusMeters returns the stop_radius_meters value or the default.
func (c *PipelineTuning) GetStopRadiusMeters() float64 {
	if c.StopRadiusMeters == nil {
		return 2.0 // default
	}
	return *c.StopRadiusMeters
}

// GetCruiseBand returns the cruise_band value or the default.
func (c *PipelineTuning) GetCruiseBand() float64 {
	if c.CruiseBand == nil {
		return 0.02 // default: within 2%
	}
	return *c.CruiseBand
}

// GetTrendBand returns the trend_band value or the default.
func (c *PipelineTuning) GetTrendBand() float64 {
	if c.TrendBand == nil {
		return 0.10 // default: beyond 10%
	}
	return *c.TrendBand
}
