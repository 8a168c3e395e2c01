// Package kinematics derives scalar quantities from state-vector components.
package kinematics

import (
	"math"

	"github.com/orbtrack/orbtrack/internal/ephem"
)

// Speed returns the Euclidean norm of a velocity vector in km/s.
// The zero vector yields 0.
func Speed(v ephem.Vec3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}
