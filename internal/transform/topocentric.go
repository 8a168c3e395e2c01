package transform

import (
	"math"

	"github.com/orbtrack/orbtrack/internal/ephem"
)

// Observer holds a ground observer's location in both geodetic and ECEF
// frames. ECEF coordinates (km) are precomputed once so they can be reused
// across many epoch lookups.
type Observer struct {
	LatRad, LonRad, AltKm float64
	ECEF                  ephem.Vec3
}

// LookAngles holds azimuth, elevation and range from observer to spacecraft.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewObserver creates an Observer from geodetic coordinates. Latitude and
// longitude in degrees, altitude in km above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altKm float64) Observer {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltKm:  altKm,
		ECEF: ephem.Vec3{
			X: (N + altKm) * cosLat * math.Cos(lon),
			Y: (N + altKm) * cosLat * math.Sin(lon),
			Z: (N*(1-wgs84E2) + altKm) * sinLat,
		},
	}
}

// ECEFToLookAngles computes azimuth, elevation and range from an observer
// to a spacecraft position in ECEF km.
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado
// Section 4.4. Azimuth: 0 = North, clockwise. Elevation: 0 = horizon.
func ECEFToLookAngles(obs Observer, sat ephem.Vec3) LookAngles {
	rx := sat.X - obs.ECEF.X
	ry := sat.Y - obs.ECEF.Y
	rz := sat.Z - obs.ECEF.Z

	sinLat := math.Sin(obs.LatRad)
	cosLat := math.Cos(obs.LatRad)
	sinLon := math.Sin(obs.LonRad)
	cosLon := math.Cos(obs.LonRad)

	// Rotate the ECEF range vector into SEZ.
	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)

	el := math.Asin(zenith / rangeMag)

	// In SEZ, North = -South, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * 180.0 / math.Pi,
		ElevationDeg: el * 180.0 / math.Pi,
		RangeKm:      rangeMag,
	}
}
