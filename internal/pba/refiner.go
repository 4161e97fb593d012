package pba

// Observation ties a point to its measured projection in one window frame.
type Observation struct {
	PointIndex int     // index into Problem.Points
	FrameID    uint32  // observing frame
	U, V       float64 // measured projection, pixels
}

// Problem is the bundle handed to the external optimizer when the sliding
// window is full: the points visible in at least two window frames, the
// window poses, and the per-frame observations. This package defines no
// cost function or Jacobian format; that belongs to the Refiner.
type Problem struct {
	Points       []*ScenePoint
	FrameIDs     []uint32
	Poses        []Mat44
	Observations []Observation
}

// Refinement carries the optimizer's output back. Points aligns
// one-to-one with Problem.Points; Poses with Problem.Poses.
type Refinement struct {
	Points      []Vec3
	Poses       []Mat44
	Message     string
	Iterations  int
	InitialCost float64
	FinalCost   float64
}

// Refiner is the boundary to the external nonlinear least-squares solver.
// Implementations receive residual inputs and return refined geometry;
// the solve loop itself lives outside this package.
type Refiner interface {
	Refine(p *Problem) (*Refinement, error)
}

// NoopRefiner returns the problem's geometry unchanged. Used when
// refinement is disabled but the caller still wants a uniform result path.
type NoopRefiner struct{}

// Refine copies the input geometry into a Refinement without touching it.
func (NoopRefiner) Refine(p *Problem) (*Refinement, error) {
	r := &Refinement{
		Points:  make([]Vec3, len(p.Points)),
		Poses:   make([]Mat44, len(p.Poses)),
		Message: "refinement disabled",
	}
	for i, sp := range p.Points {
		r.Points[i] = sp.X()
	}
	copy(r.Poses, p.Poses)
	return r, nil
}
