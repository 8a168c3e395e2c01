package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/metrics"
	"github.com/orbtrack/orbtrack/internal/passes"
	"github.com/orbtrack/orbtrack/internal/transform"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeQueryError maps the core sentinel errors onto HTTP statuses.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ephem.ErrMalformedEpoch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ephem.ErrEpochNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ephem.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, "no ephemeris loaded; POST /post-data to fetch the current dataset")
	case errors.Is(err, transform.ErrDegenerateVector):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, raw)
	}
	return n, nil
}

func queryFloat(r *http.Request, name string) (float64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q: must be a number", name, raw)
	}
	return f, true, nil
}

type rootSummary struct {
	State      string         `json:"state"`
	Source     string         `json:"source,omitempty"`
	FetchedAt  string         `json:"fetched_at,omitempty"`
	Vectors    int            `json:"vectors"`
	Skipped    int            `json:"skipped"`
	FirstEpoch string         `json:"first_epoch,omitempty"`
	LastEpoch  string         `json:"last_epoch,omitempty"`
	Comment    []string       `json:"comment,omitempty"`
	Header     ephem.Document `json:"header,omitempty"`
	Metadata   ephem.Document `json:"metadata,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	store := s.deps.Facade.Store()
	ds := store.Get()
	if ds == nil {
		writeJSON(w, http.StatusOK, rootSummary{State: store.State()})
		return
	}

	sum := rootSummary{
		State:     store.State(),
		Source:    ds.Source,
		FetchedAt: ds.FetchedAt.UTC().Format(time.RFC3339),
		Vectors:   ds.Size(),
		Skipped:   ds.Skipped,
		Comment:   ds.Comment,
		Header:    ds.Header,
		Metadata:  ds.Metadata,
	}
	if ds.Size() > 0 {
		sum.FirstEpoch = ds.Vectors[0].Epoch
		sum.LastEpoch = ds.Vectors[ds.Size()-1].Epoch
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	epochs, err := s.deps.Facade.Store().ListEpochs(limit, offset)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if epochs == nil {
		epochs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(epochs),
		"epochs": epochs,
	})
}

func (s *Server) handleEpoch(w http.ResponseWriter, r *http.Request) {
	sv, err := s.deps.Facade.Store().GetByEpoch(r.PathValue("epoch"))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	epoch := r.PathValue("epoch")
	speed, err := s.deps.Facade.SpeedAt(epoch)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"epoch": epoch,
		"speed": map[string]any{"value": speed, "units": "km/s"},
	})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.deps.Facade.LocationAt(r.Context(), r.PathValue("epoch"))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.deps.Facade.NearestToNow(r.Context())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// The comment, header and metadata blocks are upstream pass-through
// documents; the handlers below return them verbatim.

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Facade.Store().Get()
	if ds == nil {
		writeQueryError(w, ephem.ErrNotLoaded)
		return
	}
	comment := ds.Comment
	if comment == nil {
		comment = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": comment})
}

func (s *Server) handleHeader(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Facade.Store().Get()
	if ds == nil {
		writeQueryError(w, ephem.ErrNotLoaded)
		return
	}
	writeJSON(w, http.StatusOK, ds.Header)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Facade.Store().Get()
	if ds == nil {
		writeQueryError(w, ephem.ErrNotLoaded)
		return
	}
	writeJSON(w, http.StatusOK, ds.Metadata)
}

func (s *Server) handleDeleteData(w http.ResponseWriter, r *http.Request) {
	store := s.deps.Facade.Store()
	store.Lock()
	defer store.Unlock()

	store.Clear()
	metrics.SetDatasetVectors(0)
	s.deps.Logger.Info("ephemeris data deleted", "component", "api")
	writeJSON(w, http.StatusOK, map[string]string{"message": "ephemeris data deleted"})
}

func (s *Server) handlePostData(w http.ResponseWriter, r *http.Request) {
	store := s.deps.Facade.Store()
	store.Lock()
	defer store.Unlock()

	fetchedAt := time.Now().UTC()
	data, err := s.deps.Fetcher.Fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("fetching ephemeris: %v", err))
		return
	}

	snap, err := ephem.ParseOEM(bytes.NewReader(data), s.deps.Fetcher.SourceURL(), fetchedAt, s.deps.Logger)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("parsing ephemeris: %v", err))
		return
	}
	if err := store.Restore(snap); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("loading ephemeris: %v", err))
		return
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Write(data, fetchedAt); err != nil {
			s.deps.Logger.Warn("caching ephemeris failed", "component", "api", "error", err)
		}
	}

	ds := store.Get()
	metrics.SetDatasetVectors(ds.Size())
	metrics.SetDatasetAge(0)
	s.deps.Logger.Info("ephemeris data loaded",
		"component", "api",
		"source", ds.Source,
		"vectors", ds.Size(),
		"skipped", ds.Skipped,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "ephemeris data loaded",
		"source":  ds.Source,
		"vectors": ds.Size(),
		"skipped": ds.Skipped,
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if s.deps.Track == nil {
		writeError(w, http.StatusNotFound, "ground track disabled")
		return
	}
	limit, err := queryInt(r, "limit", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.deps.Track.Track(r.Context(), limit, offset)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(points),
		"points": points,
	})
}

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	lat, ok, err := queryFloat(r, "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "lat is required and must be in [-90,90]")
		return
	}
	lon, ok, err := queryFloat(r, "lon")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "lon is required and must be in [-180,180]")
		return
	}
	alt, _, err := queryFloat(r, "alt")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minElev, ok, err := queryFloat(r, "min_elevation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		minElev = 10
	}
	maxPasses, err := queryInt(r, "max", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds := s.deps.Facade.Store().Get()
	if ds == nil {
		writeQueryError(w, ephem.ErrNotLoaded)
		return
	}

	result := passes.Predict(ds, passes.Request{
		Observer:     transform.NewObserver(lat, lon, alt),
		MinElevation: minElev,
		MaxPasses:    maxPasses,
	})
	if result == nil {
		result = []passes.Pass{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(result),
		"passes": result,
	})
}

const helpText = `orbtrack - ISS ephemeris query service

Routes:
  GET    /                          dataset summary (state, source, epoch range, blocks)
  GET    /epochs?limit=&offset=     list epochs, ascending
  GET    /epochs/<epoch>            state vector for an exact epoch
  GET    /epochs/<epoch>/speed      scalar speed at an epoch (km/s)
  GET    /epochs/<epoch>/location   geodetic location at an epoch
  GET    /now                       state nearest to the current time
  GET    /comment                   upstream COMMENT block, verbatim
  GET    /header                    upstream OEM header, verbatim
  GET    /metadata                  upstream segment metadata, verbatim
  DELETE /delete-data               clear the loaded dataset
  POST   /post-data                 refetch and reload from the upstream source
  GET    /track?limit=&offset=      precomputed geodetic ground track
  GET    /passes?lat=&lon=&alt=     visibility passes for a ground observer
  GET    /stream                    live location via server-sent events
  GET    /help                      this text

Epochs use the format <year>-<day-of-year>T<HH:MM:SS.sss>Z,
e.g. 2023-058T12:00:00.000Z.
`

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(helpText))
}
