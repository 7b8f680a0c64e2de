package grid

import "math"

// Vec3 is a world-space position or offset.
// X runs along rows, Y along columns, Z is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// DistSq2D is the squared planar distance, ignoring Z.
func (v Vec3) DistSq2D(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	return dx*dx + dy*dy
}

// IsFinite reports whether every component is neither NaN nor infinite.
func (v Vec3) IsFinite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Rotator is an orientation in degrees.
// Yaw turns about the up axis, Pitch about the right axis, Roll about forward.
type Rotator struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// ZeroRotator is the identity orientation.
var ZeroRotator = Rotator{}

// IsZero reports whether r is the identity rotation.
func (r Rotator) IsZero() bool {
	return r.Pitch == 0 && r.Yaw == 0 && r.Roll == 0
}

// RotateVector rotates v by r using the forward (X), right (Y), up (Z) convention.
// A yaw of 90 maps +X onto +Y.
func (r Rotator) RotateVector(v Vec3) Vec3 {
	if r.IsZero() {
		return v
	}

	sp, cp := math.Sincos(r.Pitch * math.Pi / 180)
	sy, cy := math.Sincos(r.Yaw * math.Pi / 180)
	sr, cr := math.Sincos(r.Roll * math.Pi / 180)

	// Rows of the rotation matrix: basis vectors for X, Y and Z
	xAxis := Vec3{cp * cy, cp * sy, sp}
	yAxis := Vec3{sr*sp*cy - cr*sy, sr*sp*sy + cr*cy, -sr * cp}
	zAxis := Vec3{-(cr*sp*cy + sr*sy), cy*sr - cr*sp*sy, cr * cp}

	return xAxis.Scale(v.X).Add(yAxis.Scale(v.Y)).Add(zAxis.Scale(v.Z))
}
