package transform

import (
	"errors"
	"math"
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
)

// WGS-84 ellipsoid parameters, kilometers.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ErrDegenerateVector indicates a zero position vector, which has no
// geodetic mapping.
var ErrDegenerateVector = errors.New("degenerate position vector")

// Geodetic is a position relative to the WGS-84 ellipsoid. Longitude is
// normalized to [-180, 180), latitude to [-90, 90], altitude in km.
type Geodetic struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// ECIToECEF rotates a J2000 inertial position (km) into the Earth-fixed
// frame at the given UTC time: r_ECEF = R3(θ_GMST) · r_ECI.
func ECIToECEF(pos ephem.Vec3, t time.Time) ephem.Vec3 {
	gmst := GMST(t)
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	return ephem.Vec3{
		X: pos.X*cosG + pos.Y*sinG,
		Y: -pos.X*sinG + pos.Y*cosG,
		Z: pos.Z,
	}
}

// ECEFToGeodetic converts an Earth-fixed position (km) to geodetic
// coordinates using the iterative method (Bowring-style initial estimate).
// Five iterations converge to well below a meter for any Earth orbit.
func ECEFToGeodetic(pos ephem.Vec3) Geodetic {
	lon := math.Atan2(pos.Y, pos.X)
	p := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y)

	lat := math.Atan2(pos.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(pos.Z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		// Polar case: prime-vertical radius degenerates, use the z axis.
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg: clampLat(lat * 180.0 / math.Pi),
		LonDeg: normalizeLon(lon * 180.0 / math.Pi),
		AltKm:  alt,
	}
}

// ToGeodetic maps a J2000 inertial position (km) at an epoch to geodetic
// coordinates. Fails with ErrDegenerateVector only for the exact zero
// vector.
func ToGeodetic(pos ephem.Vec3, t time.Time) (Geodetic, error) {
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return Geodetic{}, ErrDegenerateVector
	}
	return ECEFToGeodetic(ECIToECEF(pos, t)), nil
}

// normalizeLon wraps a longitude in degrees to [-180, 180).
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180.0, 360.0)
	if lon < 0 {
		lon += 360.0
	}
	return lon - 180.0
}

func clampLat(lat float64) float64 {
	if lat > 90 {
		return 90
	}
	if lat < -90 {
		return -90
	}
	return lat
}
