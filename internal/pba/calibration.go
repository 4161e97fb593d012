package pba

// Calibration holds the pinhole intrinsics used to move between camera
// coordinates and pixels. The matching core treats it opaquely; only the
// orchestrator projects through it.
type Calibration struct {
	Fx float64 `json:"fx"` // focal length, pixels
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"` // principal point, pixels
	Cy float64 `json:"cy"`
}

// Valid reports whether the focal lengths are positive.
func (c Calibration) Valid() bool {
	return c.Fx > 0 && c.Fy > 0
}

// Project maps a camera-frame point to pixel coordinates (u along columns,
// v along rows). ok is false for points at or behind the camera plane.
func (c Calibration) Project(p Vec3) (u, v float64, ok bool) {
	if p[2] <= 0 {
		return 0, 0, false
	}
	u = c.Fx*p[0]/p[2] + c.Cx
	v = c.Fy*p[1]/p[2] + c.Cy
	return u, v, true
}

// Backproject lifts pixel (u, v) at metric depth z into the camera frame.
func (c Calibration) Backproject(u, v, z float64) Vec3 {
	return Vec3{
		(u - c.Cx) / c.Fx * z,
		(v - c.Cy) / c.Fy * z,
		z,
	}
}
