package pba

import (
	"fmt"

	"github.com/keyframe-data/photobundle/internal/config"
)

// DescriptorFunc produces an opaque descriptor for a freshly selected
// point at projection (u, v). The contents are never interpreted by this
// package; they ride along on the ScenePoint for external consumers.
type DescriptorFunc func(img Image, u, v float64) []float64

// Options configures the per-frame orchestration: window span, match
// acceptance, point selection, and parallel dispatch.
type Options struct {
	MaxFrameDistance int     // sliding-window span in frames (default: 5)
	MinZnccScore     float64 // acceptance threshold for a match (default: 0.75)
	MaskBlockRadius  int     // half-size of the occupancy block around tracked projections (default: 1)
	SaliencyQuantile float64 // selection quantile over the smoothed saliency map (default: 0.90)
	MinDepth         float64 // near plane for new points, metres (default: 0.1)
	MaxDepth         float64 // far plane for new points, metres (default: 100)
	NonMaxSuppRadius int     // local-maximum window radius for candidate pixels (default: 1)
	PatchBorder      int     // projection margin keeping full patches sampleable (default: PatchRadius+1)

	EnableParallel bool // dispatch per-point matching across workers (default: true)
	NumWorkers     int  // worker count; 0 means one per CPU (default: 0)

	// DescriptorFunc optionally fills the descriptor slot of new points.
	// Nil leaves the slot empty.
	DescriptorFunc DescriptorFunc

	// Refiner receives the window problem when it is full. Nil disables
	// refinement; results then carry unrefined poses.
	Refiner Refiner
}

// DefaultOptions returns the operational defaults. Tunable fields can be
// overridden from a TuningConfig via OptionsFromTuning.
func DefaultOptions() Options {
	return Options{
		MaxFrameDistance: 5,
		MinZnccScore:     0.75,
		MaskBlockRadius:  1,
		SaliencyQuantile: 0.90,
		MinDepth:         0.1,
		MaxDepth:         100.0,
		NonMaxSuppRadius: 1,
		PatchBorder:      PatchRadius + 1,
		EnableParallel:   true,
		NumWorkers:       0,
	}
}

// OptionsFromTuning builds Options from a loaded TuningConfig. Use this in
// binaries where the tuning file is already loaded. DescriptorFunc and
// Refiner are wiring, not tuning, and stay nil here.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	return Options{
		MaxFrameDistance: cfg.GetMaxFrameDistance(),
		MinZnccScore:     cfg.GetMinZnccScore(),
		MaskBlockRadius:  cfg.GetMaskBlockRadius(),
		SaliencyQuantile: cfg.GetSaliencyQuantile(),
		MinDepth:         cfg.GetMinDepth(),
		MaxDepth:         cfg.GetMaxDepth(),
		NonMaxSuppRadius: cfg.GetNonMaxSuppRadius(),
		PatchBorder:      PatchRadius + 1,
		EnableParallel:   cfg.GetEnableParallel(),
		NumWorkers:       cfg.GetNumWorkers(),
	}
}

// Validate checks that all parameters are in acceptable ranges.
func (o *Options) Validate() error {
	if o.MaxFrameDistance < 1 {
		return fmt.Errorf("MaxFrameDistance must be at least 1, got %d", o.MaxFrameDistance)
	}
	if o.MinZnccScore < -1 || o.MinZnccScore > 1 {
		return fmt.Errorf("MinZnccScore must be in [-1, 1], got %f", o.MinZnccScore)
	}
	if o.MaskBlockRadius < 0 {
		return fmt.Errorf("MaskBlockRadius must be non-negative, got %d", o.MaskBlockRadius)
	}
	if o.SaliencyQuantile <= 0 || o.SaliencyQuantile >= 1 {
		return fmt.Errorf("SaliencyQuantile must be in (0, 1), got %f", o.SaliencyQuantile)
	}
	if o.MinDepth <= 0 {
		return fmt.Errorf("MinDepth must be positive, got %f", o.MinDepth)
	}
	if o.MaxDepth <= o.MinDepth {
		return fmt.Errorf("MaxDepth must exceed MinDepth, got %f <= %f", o.MaxDepth, o.MinDepth)
	}
	if o.NonMaxSuppRadius < 0 {
		return fmt.Errorf("NonMaxSuppRadius must be non-negative, got %d", o.NonMaxSuppRadius)
	}
	if o.PatchBorder < PatchRadius {
		return fmt.Errorf("PatchBorder must be at least %d, got %d", PatchRadius, o.PatchBorder)
	}
	if o.NumWorkers < 0 {
		return fmt.Errorf("NumWorkers must be non-negative, got %d", o.NumWorkers)
	}
	return nil
}

// WithRefiner sets the external optimizer.
func (o Options) WithRefiner(r Refiner) Options {
	o.Refiner = r
	return o
}

// WithDescriptorFunc sets the descriptor producer for new points.
func (o Options) WithDescriptorFunc(f DescriptorFunc) Options {
	o.DescriptorFunc = f
	return o
}

// WithWorkers sets the parallel dispatch parameters.
func (o Options) WithWorkers(enabled bool, n int) Options {
	o.EnableParallel = enabled
	o.NumWorkers = n
	return o
}
