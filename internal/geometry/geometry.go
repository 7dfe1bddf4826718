package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// NoAngle is returned by PolarAngle when the direction is undefined. It is
// out of band: valid angles are always in [0, 2π).
const NoAngle = -1.0

// Point is a position in the shared planar coordinate space.
type Point = r2.Point

// Pt builds a Point from raw coordinates.
func Pt(x, y float64) Point {
	return r2.Point{X: x, Y: y}
}

// Distance returns the Euclidean distance between p1 and p2.
func Distance(p1, p2 Point) float64 {
	return p1.Sub(p2).Norm()
}

// Midpoint returns the point halfway between p1 and p2.
func Midpoint(p1, p2 Point) Point {
	return p1.Add(p2.Sub(p1).Mul(0.5))
}

// PolarAngle returns the angle of the direction origin->target measured from
// the positive x-axis, in [0, 2π). It returns NoAngle when the points coincide.
func PolarAngle(origin, target Point) float64 {
	length := Distance(origin, target)
	if length == 0 {
		return NoAngle
	}
	cos := (target.X - origin.X) / length
	// rounding can push |cos| a hair past 1
	cos = math.Max(-1, math.Min(1, cos))
	theta := math.Acos(cos)
	if target.Y < origin.Y && theta > 0 {
		theta = 2*math.Pi - theta
	}
	return theta
}

// ValidAngle reports whether a is a real angle rather than NoAngle.
func ValidAngle(a float64) bool {
	return a >= 0
}

// SegmentsIntersect reports whether segment p1-p2 crosses segment p3-p4.
// Touching at an endpoint does not count, and parallel or collinear segments
// never intersect.
func SegmentsIntersect(p1, p2, p3, p4 Point) bool {
	denom := (p4.Y-p3.Y)*(p2.X-p1.X) - (p4.X-p3.X)*(p2.Y-p1.Y)
	if denom == 0 {
		return false
	}
	ua := ((p4.X-p3.X)*(p1.Y-p3.Y) - (p4.Y-p3.Y)*(p1.X-p3.X)) / denom
	ub := ((p2.X-p1.X)*(p1.Y-p3.Y) - (p2.Y-p1.Y)*(p1.X-p3.X)) / denom
	return ua > 0 && ua < 1 && ub > 0 && ub < 1
}
