package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The same JSON schema serves startup configuration and offline sweeps, so
// every field is a pointer: omitted fields fall back to the Get* defaults.
type TuningConfig struct {
	// Matching params
	MinZnccScore     *float64 `json:"min_zncc_score,omitempty"`
	MaxFrameDistance *int     `json:"max_frame_distance,omitempty"`

	// Point selection params
	MaskBlockRadius  *int     `json:"mask_block_radius,omitempty"`
	SaliencyQuantile *float64 `json:"saliency_quantile,omitempty"`
	NonMaxSuppRadius *int     `json:"nonmax_suppression_radius,omitempty"`
	MinDepthMeters   *float64 `json:"min_depth_meters,omitempty"`
	MaxDepthMeters   *float64 `json:"max_depth_meters,omitempty"`

	// Parallel dispatch params
	EnableParallel *bool `json:"enable_parallel,omitempty"`
	NumWorkers     *int  `json:"num_workers,omitempty"`

	// Replay params
	DepthDivisor *float64 `json:"depth_divisor,omitempty"` // raw 16-bit depth units per metre

	// Reporting params
	ReportPointLimit *int `json:"report_point_limit,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
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
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/pba/store/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinZnccScore != nil {
		if *c.MinZnccScore < -1 || *c.MinZnccScore > 1 {
			return fmt.Errorf("min_zncc_score must be between -1 and 1, got %f", *c.MinZnccScore)
		}
	}

	if c.MaxFrameDistance != nil {
		if *c.MaxFrameDistance < 1 {
			return fmt.Errorf("max_frame_distance must be at least 1, got %d", *c.MaxFrameDistance)
		}
	}

	if c.SaliencyQuantile != nil {
		if *c.SaliencyQuantile <= 0 || *c.SaliencyQuantile >= 1 {
			return fmt.Errorf("saliency_quantile must be strictly between 0 and 1, got %f", *c.SaliencyQuantile)
		}
	}

	if c.MaskBlockRadius != nil && *c.MaskBlockRadius < 0 {
		return fmt.Errorf("mask_block_radius must be non-negative, got %d", *c.MaskBlockRadius)
	}

	if c.NonMaxSuppRadius != nil && *c.NonMaxSuppRadius < 0 {
		return fmt.Errorf("nonmax_suppression_radius must be non-negative, got %d", *c.NonMaxSuppRadius)
	}

	if c.MinDepthMeters != nil && *c.MinDepthMeters <= 0 {
		return fmt.Errorf("min_depth_meters must be positive, got %f", *c.MinDepthMeters)
	}

	if c.MinDepthMeters != nil && c.MaxDepthMeters != nil && *c.MaxDepthMeters <= *c.MinDepthMeters {
		return fmt.Errorf("max_depth_meters must exceed min_depth_meters, got %f <= %f",
			*c.MaxDepthMeters, *c.MinDepthMeters)
	}

	if c.NumWorkers != nil && *c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must be non-negative, got %d", *c.NumWorkers)
	}

	if c.DepthDivisor != nil && *c.DepthDivisor <= 0 {
		return fmt.Errorf("depth_divisor must be positive, got %f", *c.DepthDivisor)
	}

	if c.ReportPointLimit != nil && *c.ReportPointLimit < 0 {
		return fmt.Errorf("report_point_limit must be non-negative, got %d", *c.ReportPointLimit)
	}

	return nil
}

// GetMinZnccScore returns the min_zncc_score value or the default.
func (c *TuningConfig) GetMinZnccScore() float64 {
	if c.MinZnccScore == nil {
		return 0.75 // default
	}
	return *c.MinZnccScore
}

// GetMaxFrameDistance returns the max_frame_distance value or the default.
func (c *TuningConfig) GetMaxFrameDistance() int {
	if c.MaxFrameDistance == nil {
		return 5 // default
	}
	return *c.MaxFrameDistance
}

// GetMaskBlockRadius returns the mask_block_radius value or the default.
func (c *TuningConfig) GetMaskBlockRadius() int {
	if c.MaskBlockRadius == nil {
		return 1
	}
	return *c.MaskBlockRadius
}

// GetSaliencyQuantile returns the saliency_quantile value or the default.
func (c *TuningConfig) GetSaliencyQuantile() float64 {
	if c.SaliencyQuantile == nil {
		return 0.90
	}
	return *c.SaliencyQuantile
}

// GetNonMaxSuppRadius returns the nonmax_suppression_radius value or the default.
func (c *TuningConfig) GetNonMaxSuppRadius() int {
	if c.NonMaxSuppRadius == nil {
		return 1
	}
	return *c.NonMaxSuppRadius
}

// GetMinDepth returns the min_depth_meters value or the default.
func (c *TuningConfig) GetMinDepth() float64 {
	if c.MinDepthMeters == nil {
		return 0.1
	}
	return *c.MinDepthMeters
}

// GetMaxDepth returns the max_depth_meters value or the default.
func (c *TuningConfig) GetMaxDepth() float64 {
	if c.MaxDepthMeters == nil {
		return 100.0
	}
	return *c.MaxDepthMeters
}

// GetEnableParallel returns the enable_parallel value or the default.
func (c *TuningConfig) GetEnableParallel() bool {
	if c.EnableParallel == nil {
		return true
	}
	return *c.EnableParallel
}

// GetNumWorkers returns the num_workers value or the default.
func (c *TuningConfig) GetNumWorkers() int {
	if c.NumWorkers == nil {
		return 0 // one worker per CPU
	}
	return *c.NumWorkers
}

// GetDepthDivisor returns the depth_divisor value or the default.
func (c *TuningConfig) GetDepthDivisor() float64 {
	if c.DepthDivisor == nil {
		return 256.0 // KITTI-style 16-bit depth PNGs
	}
	return *c.DepthDivisor
}

// GetReportPointLimit returns the report_point_limit value or the default.
func (c *TuningConfig) GetReportPointLimit() int {
	if c.ReportPointLimit == nil {
		return 2000
	}
	return *c.ReportPointLimit
}
