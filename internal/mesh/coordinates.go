package mesh

import "gpsr-simulation/internal/geometry"

// Coordinates is a node position in the simulation plane.
type Coordinates struct {
	X float64
	Y float64
}

func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return geometry.Distance(c.Point(), other.Point())
}

func (c Coordinates) Equals(other Coordinates) bool {
	return c.X == other.X && c.Y == other.Y
}

// Point converts to the geometry package representation.
func (c Coordinates) Point() geometry.Point {
	return geometry.Pt(c.X, c.Y)
}

func CreateCoordinates(x float64, y float64) Coordinates {
	return Coordinates{X: x, Y: y}
}
