// Package track precomputes the geodetic ground track of the loaded
// ephemeris: one latitude/longitude/altitude point per stored state vector.
// The track is regenerated when the store publishes a new dataset and
// served from an atomically swapped snapshot in between.
package track

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/metrics"
	"github.com/orbtrack/orbtrack/internal/transform"
)

// Point is one ground-track sample.
type Point struct {
	Epoch      string  `json:"epoch"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

// snapshot pairs generated points with the dataset they came from, so a
// swapped dataset invalidates the track by pointer identity.
type snapshot struct {
	ds     *ephem.Dataset
	points []Point
}

// Generator maintains the ground track for the store's live dataset.
type Generator struct {
	store   *ephem.Store
	workers int
	logger  *slog.Logger

	current atomic.Pointer[snapshot]
	genMu   sync.Mutex // serializes regeneration
}

// NewGenerator creates a Generator computing with the given number of
// workers (defaults to GOMAXPROCS when workers < 1).
func NewGenerator(store *ephem.Store, workers int, logger *slog.Logger) *Generator {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Generator{
		store:   store,
		workers: workers,
		logger:  logger,
	}
}

// Track returns ground-track points in epoch order, honoring the same
// limit/offset semantics as the epoch listing. Fails with ErrNotLoaded
// when no dataset is live. A dataset swap since the last generation
// triggers a synchronous regeneration.
func (g *Generator) Track(ctx context.Context, limit, offset int) ([]Point, error) {
	ds := g.store.Get()
	if ds == nil {
		return nil, ephem.ErrNotLoaded
	}

	snap := g.current.Load()
	if snap == nil || snap.ds != ds {
		snap = g.regenerate(ctx, ds)
	}

	points := snap.points
	if offset < 0 {
		offset = 0
	}
	if offset >= len(points) {
		return []Point{}, nil
	}
	points = points[offset:]
	if limit >= 0 && limit < len(points) {
		points = points[:limit]
	}
	return points, nil
}

// Start runs the background maintenance loop: it watches for dataset swaps
// and regenerates the track ahead of demand. Blocks until ctx is cancelled.
func (g *Generator) Start(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("track generator stopped")
			return
		case <-ticker.C:
			ds := g.store.Get()
			if ds == nil {
				continue
			}
			snap := g.current.Load()
			if snap == nil || snap.ds != ds {
				g.regenerate(ctx, ds)
			}
		}
	}
}

// regenerate computes the track for ds and publishes it. Concurrent calls
// collapse onto one generation.
func (g *Generator) regenerate(ctx context.Context, ds *ephem.Dataset) *snapshot {
	g.genMu.Lock()
	defer g.genMu.Unlock()

	// Another caller may have finished while we waited for the lock.
	if snap := g.current.Load(); snap != nil && snap.ds == ds {
		return snap
	}

	start := time.Now()
	points := g.generate(ctx, ds)
	snap := &snapshot{ds: ds, points: points}
	g.current.Store(snap)

	duration := time.Since(start)
	metrics.ObserveTrackGeneration(duration)
	g.logger.Info("ground track generated",
		"points", len(points),
		"workers", g.workers,
		"duration_ms", duration.Milliseconds(),
	)
	return snap
}

// generate computes one Point per state vector using a bounded worker pool.
// Each index is independent, so workers write into a preallocated slice
// without coordination. Vectors that fail conversion (an all-zero position
// parses fine but has no geodetic fix) are dropped from the result.
func (g *Generator) generate(ctx context.Context, ds *ephem.Dataset) []Point {
	vecs := ds.Vectors
	points := make([]Point, len(vecs))
	valid := make([]bool, len(vecs))

	jobs := make(chan int, g.workers*2)
	var wg sync.WaitGroup

	for w := 0; w < g.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sv := vecs[i]
				geo, err := transform.ToGeodetic(sv.Position, sv.At)
				if err != nil {
					g.logger.Warn("skipping track point", "epoch", sv.Epoch, "error", err)
					continue
				}
				points[i] = Point{
					Epoch:      sv.Epoch,
					Latitude:   geo.LatDeg,
					Longitude:  geo.LonDeg,
					AltitudeKm: geo.AltKm,
				}
				valid[i] = true
			}
		}()
	}

	for i := range vecs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return compact(points, valid)
		}
	}
	close(jobs)
	wg.Wait()

	return compact(points, valid)
}

// compact keeps only the points marked valid, preserving epoch order.
func compact(points []Point, valid []bool) []Point {
	out := points[:0]
	for i, ok := range valid {
		if ok {
			out = append(out, points[i])
		}
	}
	return out
}
