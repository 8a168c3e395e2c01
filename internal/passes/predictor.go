// Package passes finds intervals in the loaded ephemeris window during
// which the spacecraft is visible from a ground observer. Detection runs
// at the data's own cadence (4-minute telemetry samples); no orbit model
// is fitted between samples, so rise and set are reported as the first
// and last sample above the elevation mask.
package passes

import (
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/transform"
)

// Pass describes one visibility interval over the observer.
type Pass struct {
	StartEpoch      string    `json:"start_epoch"`
	EndEpoch        string    `json:"end_epoch"`
	MaxElevEpoch    string    `json:"max_elevation_epoch"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	MaxElevation    float64   `json:"max_elevation"`
	AzimuthAtMax    float64   `json:"azimuth_at_max"`
	StartAzimuth    float64   `json:"start_azimuth"`
	EndAzimuth      float64   `json:"end_azimuth"`
	Samples         int       `json:"samples"`
}

// Request holds the parameters for a pass search.
type Request struct {
	Observer     transform.Observer
	MinElevation float64 // degrees above the horizon
	MaxPasses    int     // 0 means no cap
}

// Predict scans the dataset in epoch order and collects maximal runs of
// samples whose elevation is at or above the mask. Single-sample passes
// are kept: at a 4-minute cadence even a genuine pass may appear in only
// one record.
func Predict(ds *ephem.Dataset, req Request) []Pass {
	var (
		passes  []Pass
		cur     *Pass
		lastLA  transform.LookAngles
		samples int
	)

	flush := func() {
		if cur == nil {
			return
		}
		cur.EndAzimuth = lastLA.AzimuthDeg
		cur.DurationSeconds = cur.EndTime.Sub(cur.StartTime).Seconds()
		cur.Samples = samples
		passes = append(passes, *cur)
		cur = nil
	}

	for _, sv := range ds.Vectors {
		if req.MaxPasses > 0 && len(passes) >= req.MaxPasses && cur == nil {
			break
		}

		ecef := transform.ECIToECEF(sv.Position, sv.At)
		la := transform.ECEFToLookAngles(req.Observer, ecef)

		if la.ElevationDeg < req.MinElevation {
			flush()
			continue
		}

		if cur == nil {
			cur = &Pass{
				StartEpoch:   sv.Epoch,
				StartTime:    sv.At,
				StartAzimuth: la.AzimuthDeg,
				MaxElevation: la.ElevationDeg,
				MaxElevEpoch: sv.Epoch,
				AzimuthAtMax: la.AzimuthDeg,
			}
			samples = 0
		}
		if la.ElevationDeg > cur.MaxElevation {
			cur.MaxElevation = la.ElevationDeg
			cur.MaxElevEpoch = sv.Epoch
			cur.AzimuthAtMax = la.AzimuthDeg
		}
		cur.EndEpoch = sv.Epoch
		cur.EndTime = sv.At
		lastLA = la
		samples++
	}
	flush()

	return passes
}
