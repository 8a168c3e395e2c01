package kinematics

import (
	"math"
	"testing"

	"github.com/orbtrack/orbtrack/internal/ephem"
)

func TestSpeed(t *testing.T) {
	tests := []struct {
		name string
		v    ephem.Vec3
		want float64
	}{
		{"3-4-5 triangle", ephem.Vec3{X: 3, Y: 4, Z: 0}, 5.0},
		{"zero vector", ephem.Vec3{}, 0.0},
		{"unit z", ephem.Vec3{Z: 1}, 1.0},
		{"negative components", ephem.Vec3{X: -3, Y: -4, Z: 0}, 5.0},
		{"ISS-like velocity", ephem.Vec3{X: -4.5815461024513, Y: -4.8951801207083, Z: 3.70067961081915}, 7.658225},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Speed(tt.v)
			if math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("Speed(%v) = %.9f, want %.6f", tt.v, got, tt.want)
			}
		})
	}
}
