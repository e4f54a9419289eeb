package sdfx

import (
	"math"

	"github.com/chazu/coilblock/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// orient returns a rotation taking +Z onto zdir and +X onto the part of
// xdir perpendicular to zdir. A zero xdir leaves the spin about zdir
// unspecified.
func orient(xdir, zdir kernel.Vec3) sdf.M44 {
	z := zdir.Unit()
	axis := kernel.V3(0, 0, 1).Cross(z)

	var m sdf.M44
	switch {
	case axis.Length() > 1e-12:
		m = sdf.Rotate3d(toV3(axis.Unit()), math.Acos(clamp(z.Z)))
	case z.Z < 0:
		m = sdf.RotateX(math.Pi)
	default:
		m = sdf.Translate3d(v3.Vec{})
	}

	x := xdir.Sub(z.Scale(xdir.Dot(z))).Unit()
	if x.Length() == 0 {
		return m
	}
	x1 := fromV3(m.MulPosition(v3.Vec{X: 1}))
	angle := math.Atan2(z.Dot(x1.Cross(x)), x1.Dot(x))
	return sdf.Rotate3d(toV3(z), angle).Mul(m)
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
