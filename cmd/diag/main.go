package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/kinematics"
	"github.com/orbtrack/orbtrack/internal/transform"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cacheDir := os.Getenv("ORBTRACK_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "/tmp/orbtrack/oem"
	}

	oemCache := ephem.NewCache(cacheDir, 5)
	data, ts, err := oemCache.LoadLatest()
	if err != nil {
		fmt.Println("ERROR reading OEM cache:", err)
		os.Exit(1)
	}

	snap, err := ephem.ParseOEM(bytes.NewReader(data), "cache", ts, logger)
	if err != nil {
		fmt.Println("ERROR parsing OEM:", err)
		os.Exit(1)
	}

	ds, err := ephem.BuildDataset(snap)
	if err != nil {
		fmt.Println("ERROR building dataset:", err)
		os.Exit(1)
	}

	first, last := ds.EpochRange()
	fmt.Printf("Loaded %d state vectors (%d skipped), cached at %v\n", ds.Size(), ds.Skipped, ts.Format(time.RFC3339))
	fmt.Printf("Epoch range: %v .. %v\n", first.Format(time.RFC3339), last.Format(time.RFC3339))
	if name := ds.Metadata.Get("OBJECT_NAME"); name != nil {
		fmt.Printf("Object: %v\n", name)
	}

	store := ephem.NewStore()
	store.Set(ds)

	now := time.Now().UTC()
	sv, err := store.NearestTo(now)
	if err != nil {
		fmt.Println("ERROR finding nearest vector:", err)
		os.Exit(1)
	}

	delta := sv.At.Sub(now).Seconds()
	fmt.Printf("\nNearest epoch: %s (%+.1fs from now)\n", sv.Epoch, delta)
	fmt.Printf("Position (km):   x=%.3f y=%.3f z=%.3f\n", sv.Position.X, sv.Position.Y, sv.Position.Z)
	fmt.Printf("Velocity (km/s): x=%.3f y=%.3f z=%.3f\n", sv.Velocity.X, sv.Velocity.Y, sv.Velocity.Z)
	fmt.Printf("Speed: %.3f km/s\n", kinematics.Speed(sv.Velocity))

	geo, err := transform.ToGeodetic(sv.Position, sv.At)
	if err != nil {
		fmt.Println("ERROR converting to geodetic:", err)
		os.Exit(1)
	}
	fmt.Printf("Geodetic fix: lat=%.4f lon=%.4f alt=%.1f km\n", geo.LatDeg, geo.LonDeg, geo.AltKm)
}
