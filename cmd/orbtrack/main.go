package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/orbtrack/orbtrack/internal/api"
	"github.com/orbtrack/orbtrack/internal/auth"
	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/geocode"
	"github.com/orbtrack/orbtrack/internal/metrics"
	"github.com/orbtrack/orbtrack/internal/query"
	"github.com/orbtrack/orbtrack/internal/stream"
	"github.com/orbtrack/orbtrack/internal/track"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("ORBTRACK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	dataCfg := loadDataConfig(logger)
	store := ephem.NewStore()
	oemCache := ephem.NewCache(dataCfg.CacheDir, dataCfg.MaxFiles)
	fetcher := ephem.NewFetcher(dataCfg.SourceURL)

	// Come up with cached data before touching the network.
	data, ts, err := oemCache.LoadLatest()
	if err != nil {
		logger.Info("no ephemeris cache found, starting without data", "error", err)
	} else {
		snap, err := ephem.ParseOEM(bytes.NewReader(data), "cache", ts, logger)
		if err != nil {
			logger.Warn("failed to parse cached ephemeris", "error", err)
		} else if err := store.Restore(snap); err != nil {
			logger.Warn("failed to load cached ephemeris", "error", err)
		} else {
			ds := store.Get()
			metrics.SetDatasetVectors(ds.Size())
			logger.Info("loaded ephemeris from cache",
				"vectors", ds.Size(),
				"skipped", ds.Skipped,
				"cached_at", ts.Format(time.RFC3339),
			)
		}
	}

	if dataCfg.EnableFetch {
		fetchCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		refreshDataset(fetchCtx, store, fetcher, oemCache, logger)
		cancel()
	}

	geocoder := loadGeocoder(logger)
	facade := query.New(store, geocoder, logger)

	trackGen := track.NewGenerator(store, loadTrackWorkers(logger), logger)
	streamHandler := stream.NewHandler(facade, loadStreamConfig(logger), logger)

	srv := api.NewServer(addr, api.Deps{
		Facade:     facade,
		Fetcher:    fetcher,
		Cache:      oemCache,
		Track:      trackGen,
		Stream:     streamHandler,
		Logger:     logger,
		Auth:       authCfg,
		TrustProxy: loadTrustProxy(logger),
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep the ground track current against dataset swaps.
	go trackGen.Start(ctx)

	// Background goroutine to update the dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "fetch_enabled", dataCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refreshDataset fetches the upstream OEM, loads it into the store and
// caches the raw bytes. Failures are logged, never fatal: any cached
// dataset stays in place.
func refreshDataset(ctx context.Context, store *ephem.Store, fetcher *ephem.Fetcher, oemCache *ephem.Cache, logger *slog.Logger) {
	fetchedAt := time.Now().UTC()
	data, err := fetcher.Fetch(ctx)
	if err != nil {
		logger.Warn("startup ephemeris fetch failed", "error", err, "source", fetcher.SourceURL())
		return
	}

	snap, err := ephem.ParseOEM(bytes.NewReader(data), fetcher.SourceURL(), fetchedAt, logger)
	if err != nil {
		logger.Warn("parsing fetched ephemeris failed", "error", err)
		return
	}

	store.Lock()
	defer store.Unlock()
	if err := store.Restore(snap); err != nil {
		logger.Warn("loading fetched ephemeris failed", "error", err)
		return
	}

	if err := oemCache.Write(data, fetchedAt); err != nil {
		logger.Warn("caching fetched ephemeris failed", "error", err)
	}

	ds := store.Get()
	metrics.SetDatasetVectors(ds.Size())
	metrics.SetDatasetAge(0)
	logger.Info("loaded ephemeris from upstream",
		"source", ds.Source,
		"vectors", ds.Size(),
		"skipped", ds.Skipped,
	)
}

type dataConfig struct {
	SourceURL   string
	CacheDir    string
	MaxFiles    int
	EnableFetch bool
}

func loadDataConfig(logger *slog.Logger) dataConfig {
	cfg := dataConfig{
		CacheDir:    "/tmp/orbtrack/oem",
		MaxFiles:    5,
		EnableFetch: true,
	}

	if v := os.Getenv("ORBTRACK_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("ORBTRACK_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("ORBTRACK_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORBTRACK_CACHE_MAX_FILES value, using default", "value", v, "default", cfg.MaxFiles)
		} else {
			cfg.MaxFiles = n
		}
	}

	if v := os.Getenv("ORBTRACK_ENABLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ORBTRACK_ENABLE_FETCH value, defaulting to true", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	logger.Info("data config",
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"max_files", cfg.MaxFiles,
		"fetch_enabled", cfg.EnableFetch,
	)

	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ORBTRACK_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ORBTRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ORBTRACK_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ORBTRACK_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadGeocoder returns nil when reverse geocoding is disabled; location
// responses then simply omit the place annotation.
func loadGeocoder(logger *slog.Logger) geocode.Geocoder {
	if v := os.Getenv("ORBTRACK_GEOCODER_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ORBTRACK_GEOCODER_ENABLED value, defaulting to true", "value", v)
		} else if !enabled {
			logger.Info("reverse geocoding disabled")
			return nil
		}
	}

	baseURL := os.Getenv("ORBTRACK_GEOCODER_URL")
	userAgent := os.Getenv("ORBTRACK_GEOCODER_USER_AGENT")
	if userAgent == "" {
		userAgent = "orbtrack/1.0"
	}

	timeout := 5 * time.Second
	if v := os.Getenv("ORBTRACK_GEOCODER_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORBTRACK_GEOCODER_TIMEOUT value, using default", "value", v, "default", 5)
		} else {
			timeout = time.Duration(n) * time.Second
		}
	}

	logger.Info("geocoder config", "base_url", baseURL, "user_agent", userAgent, "timeout_seconds", timeout.Seconds())
	return geocode.NewNominatim(baseURL, userAgent, timeout)
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrentTotal: 1000,
		Interval:           5 * time.Second,
	}

	if v := os.Getenv("ORBTRACK_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORBTRACK_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("ORBTRACK_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORBTRACK_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxConcurrentTotal = n
		}
	}

	if v := os.Getenv("ORBTRACK_STREAM_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORBTRACK_STREAM_INTERVAL value, using default", "value", v, "default", 5)
		} else {
			cfg.Interval = time.Duration(n) * time.Second
		}
	}

	cfg.TrustProxy = loadTrustProxy(logger)

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent_total", cfg.MaxConcurrentTotal,
		"interval_seconds", cfg.Interval.Seconds(),
	)

	return cfg
}

func loadTrackWorkers(logger *slog.Logger) int {
	workers := runtime.NumCPU()
	if v := os.Getenv("ORBTRACK_TRACK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORBTRACK_TRACK_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}
	return workers
}

func loadTrustProxy(logger *slog.Logger) bool {
	v := os.Getenv("ORBTRACK_TRUST_PROXY")
	if v == "" {
		return false
	}
	trust, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid ORBTRACK_TRUST_PROXY value, defaulting to false", "value", v)
		return false
	}
	return trust
}
