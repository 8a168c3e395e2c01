// Package query composes the store, kinematics, frame conversion and the
// reverse geocoder into the read operations the HTTP layer serves.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/geocode"
	"github.com/orbtrack/orbtrack/internal/kinematics"
	"github.com/orbtrack/orbtrack/internal/metrics"
	"github.com/orbtrack/orbtrack/internal/transform"
)

// Altitude is a value with explicit units, km throughout.
type Altitude struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// Location is a geodetic fix derived from one state vector.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  Altitude `json:"altitude"`
}

// Speed is a scalar speed with explicit units.
type Speed struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// LocationBundle answers a location query for one epoch. Geo is nil when
// the reverse geocoder fails or the point is over open water.
type LocationBundle struct {
	Epoch    string         `json:"epoch"`
	Location Location       `json:"location"`
	Speed    Speed          `json:"speed"`
	Geo      *geocode.Place `json:"geo,omitempty"`
}

// NowBundle answers the nearest-to-now query. SecondsFromNow is the signed
// delta epoch − now: negative means the chosen epoch is in the past.
type NowBundle struct {
	Epoch          string         `json:"epoch"`
	SecondsFromNow float64        `json:"seconds_from_now"`
	Position       ephem.Vec3     `json:"position_km"`
	Velocity       ephem.Vec3     `json:"velocity_km_s"`
	Speed          Speed          `json:"speed"`
	Location       Location       `json:"location"`
	Geo            *geocode.Place `json:"geo,omitempty"`
}

// Facade exposes the read operations. The geocoder is optional; when nil
// (or failing) responses simply omit the place annotation. Clock is
// injectable for tests and defaults to time.Now.
type Facade struct {
	store    *ephem.Store
	geocoder geocode.Geocoder
	clock    func() time.Time
	logger   *slog.Logger
}

// New creates a Facade over the given store.
func New(store *ephem.Store, geocoder geocode.Geocoder, logger *slog.Logger) *Facade {
	return &Facade{
		store:    store,
		geocoder: geocoder,
		clock:    time.Now,
		logger:   logger,
	}
}

// WithClock replaces the wall-clock source. Returns the facade for chaining.
func (f *Facade) WithClock(clock func() time.Time) *Facade {
	f.clock = clock
	return f
}

// Store returns the underlying store.
func (f *Facade) Store() *ephem.Store {
	return f.store
}

// SpeedAt returns the scalar speed in km/s at an exact epoch.
func (f *Facade) SpeedAt(epoch string) (float64, error) {
	sv, err := f.store.GetByEpoch(epoch)
	if err != nil {
		return 0, err
	}
	return kinematics.Speed(sv.Velocity), nil
}

// LocationAt returns the geodetic location, speed and best-effort place
// annotation for an exact epoch.
func (f *Facade) LocationAt(ctx context.Context, epoch string) (LocationBundle, error) {
	sv, err := f.store.GetByEpoch(epoch)
	if err != nil {
		return LocationBundle{}, err
	}

	loc, err := f.locate(sv)
	if err != nil {
		return LocationBundle{}, err
	}

	return LocationBundle{
		Epoch:    sv.Epoch,
		Location: loc,
		Speed:    Speed{Value: kinematics.Speed(sv.Velocity), Units: "km/s"},
		Geo:      f.annotate(ctx, loc),
	}, nil
}

// NearestToNow resolves the record closest to the current instant and
// derives its speed, geodetic location and place annotation.
func (f *Facade) NearestToNow(ctx context.Context) (NowBundle, error) {
	now := f.clock()
	sv, err := f.store.NearestTo(now)
	if err != nil {
		return NowBundle{}, err
	}

	loc, err := f.locate(sv)
	if err != nil {
		return NowBundle{}, err
	}

	return NowBundle{
		Epoch:          sv.Epoch,
		SecondsFromNow: sv.At.Sub(now).Seconds(),
		Position:       sv.Position,
		Velocity:       sv.Velocity,
		Speed:          Speed{Value: kinematics.Speed(sv.Velocity), Units: "km/s"},
		Location:       loc,
		Geo:            f.annotate(ctx, loc),
	}, nil
}

func (f *Facade) locate(sv ephem.StateVector) (Location, error) {
	geo, err := transform.ToGeodetic(sv.Position, sv.At)
	if err != nil {
		return Location{}, err
	}
	return Location{
		Latitude:  geo.LatDeg,
		Longitude: geo.LonDeg,
		Altitude:  Altitude{Value: geo.AltKm, Units: "km"},
	}, nil
}

// annotate performs the best-effort reverse geocode. Failure degrades to a
// nil annotation; the query itself never fails on the geocoder.
func (f *Facade) annotate(ctx context.Context, loc Location) *geocode.Place {
	if f.geocoder == nil {
		return nil
	}
	place, err := f.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		metrics.IncGeocodeFailure()
		f.logger.Debug("reverse geocode unavailable", "lat", loc.Latitude, "lon", loc.Longitude, "error", err)
		return nil
	}
	return &place
}
