package transform

import (
	"errors"
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/orbtrack/orbtrack/internal/ephem"
)

// TestECIToECEF validates the inertial→Earth-fixed rotation against the
// go-satellite library's ECIToECEF, which applies the same GMST-only
// rotation.
func TestECIToECEF(t *testing.T) {
	tests := []struct {
		name string
		pos  ephem.Vec3
		time time.Time
	}{
		{
			// Vallado "Fundamentals of Astrodynamics" Example 3-15
			name: "Vallado example 3-15",
			pos:  ephem.Vec3{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "ISS-like LEO",
			pos:  ephem.Vec3{X: -5097.51711, Y: 1610.36244, Z: -4194.47178},
			time: time.Date(2023, 2, 27, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "polar position",
			pos:  ephem.Vec3{X: 0, Y: 0, Z: 6778.0},
			time: time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ECIToECEF(tt.pos, tt.time)

			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			ref := satellite.ECIToECEF(
				satellite.Vector3{X: tt.pos.X, Y: tt.pos.Y, Z: tt.pos.Z},
				gmst,
			)

			// Sub-meter agreement in km.
			const tol = 1e-3
			if math.Abs(got.X-ref.X) > tol || math.Abs(got.Y-ref.Y) > tol || math.Abs(got.Z-ref.Z) > tol {
				t.Errorf("ECEF mismatch:\n  ours: [%.6f, %.6f, %.6f] km\n  ref:  [%.6f, %.6f, %.6f] km",
					got.X, got.Y, got.Z, ref.X, ref.Y, ref.Z)
			}
		})
	}
}

// A position on the equatorial plane at the Greenwich meridian (after
// rotation) must map to latitude ≈ 0, longitude ≈ 0.
func TestToGeodetic_EquatorialReferenceMeridian(t *testing.T) {
	at := time.Date(2023, 2, 27, 13, 20, 0, 0, time.UTC)
	g := GMST(at)
	const r = 6778.137 // km, 400 km above the equator

	// Inertial position chosen so the GMST rotation lands it on the
	// prime meridian: R3(g) · (r·cos g, r·sin g, 0) = (r, 0, 0).
	pos := ephem.Vec3{X: r * math.Cos(g), Y: r * math.Sin(g), Z: 0}

	geo, err := ToGeodetic(pos, at)
	if err != nil {
		t.Fatalf("ToGeodetic: %v", err)
	}

	if math.Abs(geo.LatDeg) > 1e-9 {
		t.Errorf("latitude = %.12f, want ~0", geo.LatDeg)
	}
	if math.Abs(geo.LonDeg) > 1e-9 {
		t.Errorf("longitude = %.12f, want ~0", geo.LonDeg)
	}
	// On the equator the ellipsoid radius is exactly the semi-major axis.
	if math.Abs(geo.AltKm-400.0) > 1e-6 {
		t.Errorf("altitude = %.9f km, want 400", geo.AltKm)
	}
}

func TestToGeodetic_DegenerateVector(t *testing.T) {
	_, err := ToGeodetic(ephem.Vec3{}, time.Now())
	if !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("ToGeodetic(zero) error = %v, want ErrDegenerateVector", err)
	}

	// Near-zero but not exactly zero is not degenerate.
	if _, err := ToGeodetic(ephem.Vec3{X: 1e-9}, time.Now()); err != nil {
		t.Errorf("ToGeodetic(near-zero) unexpected error: %v", err)
	}
}

// The geodetic conversion must invert the forward observer transform to
// sub-meter precision.
func TestECEFToGeodetic_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		latDeg float64
		lonDeg float64
		altKm  float64
	}{
		{"equator prime meridian", 0, 0, 0},
		{"mid latitude", 39.7392, -104.9903, 1.609},
		{"southern hemisphere", -33.8688, 151.2093, 0.058},
		{"high latitude", 78.2232, 15.6267, 0},
		{"LEO altitude", 51.6, -0.13, 420},
		{"date line west", 12.5, 179.95, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := NewObserver(tt.latDeg, tt.lonDeg, tt.altKm)
			geo := ECEFToGeodetic(obs.ECEF)

			if math.Abs(geo.LatDeg-tt.latDeg) > 1e-7 {
				t.Errorf("lat = %.9f, want %.9f", geo.LatDeg, tt.latDeg)
			}
			if math.Abs(geo.LonDeg-tt.lonDeg) > 1e-7 {
				t.Errorf("lon = %.9f, want %.9f", geo.LonDeg, tt.lonDeg)
			}
			// Sub-meter altitude error.
			if math.Abs(geo.AltKm-tt.altKm) > 1e-4 {
				t.Errorf("alt = %.9f km, want %.9f", geo.AltKm, tt.altKm)
			}
		})
	}
}

func TestECEFToGeodetic_Poles(t *testing.T) {
	// WGS-84 polar radius is 6356.7523142 km.
	const b = wgs84A * (1 - wgs84F)

	north := ECEFToGeodetic(ephem.Vec3{Z: b + 400})
	if math.Abs(north.LatDeg-90) > 1e-6 {
		t.Errorf("north pole lat = %.9f, want 90", north.LatDeg)
	}
	if math.Abs(north.AltKm-400) > 1e-3 {
		t.Errorf("north pole alt = %.6f km, want ~400", north.AltKm)
	}

	south := ECEFToGeodetic(ephem.Vec3{Z: -(b + 400)})
	if math.Abs(south.LatDeg+90) > 1e-6 {
		t.Errorf("south pole lat = %.9f, want -90", south.LatDeg)
	}
}

func TestNormalizeLon(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{179.9, 179.9},
		{180, -180},
		{-180, -180},
		{190, -170},
		{-190, 170},
		{360, 0},
		{540, -180},
	}
	for _, tt := range tests {
		if got := normalizeLon(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("normalizeLon(%.1f) = %.6f, want %.6f", tt.in, got, tt.want)
		}
	}
}
