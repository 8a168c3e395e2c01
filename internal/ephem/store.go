package ephem

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Lifecycle states reported by Store.State.
const (
	StateUnloaded = "unloaded" // nothing has ever been loaded
	StateLoaded   = "loaded"   // a non-empty dataset is live
	StateCleared  = "cleared"  // a dataset was loaded, then deleted
)

// Snapshot is the raw material of one dataset: the upstream records plus
// the verbatim comment/header/metadata blocks. The service captures the
// snapshot at fetch time so a cleared store can be restored without
// refetching.
type Snapshot struct {
	Source    string
	FetchedAt time.Time
	Records   []RawRecord
	Comment   []string
	Header    Document
	Metadata  Document
}

// BuildDataset parses a snapshot's raw records into a sorted,
// epoch-indexed Dataset. Records whose epoch fails to parse are skipped
// and counted, as are duplicate epochs (first seen wins). Returns
// ErrEmptyDataset when no record survives.
func BuildDataset(snap Snapshot) (*Dataset, error) {
	ds := &Dataset{
		Source:    snap.Source,
		FetchedAt: snap.FetchedAt,
		Comment:   snap.Comment,
		Header:    snap.Header,
		Metadata:  snap.Metadata,
		byEpoch:   make(map[string]int, len(snap.Records)),
	}

	for _, r := range snap.Records {
		at, err := ParseEpoch(r.Epoch)
		if err != nil {
			ds.Skipped++
			continue
		}
		if _, dup := ds.byEpoch[r.Epoch]; dup {
			ds.Skipped++
			continue
		}
		ds.byEpoch[r.Epoch] = -1 // index assigned after sorting
		ds.Vectors = append(ds.Vectors, StateVector{
			Epoch:    r.Epoch,
			At:       at,
			Position: Vec3{X: r.X, Y: r.Y, Z: r.Z},
			Velocity: Vec3{X: r.XDot, Y: r.YDot, Z: r.ZDot},
		})
	}

	if len(ds.Vectors) == 0 {
		return nil, ErrEmptyDataset
	}

	sort.SliceStable(ds.Vectors, func(i, j int) bool {
		return ds.Vectors[i].At.Before(ds.Vectors[j].At)
	})
	for i, sv := range ds.Vectors {
		ds.byEpoch[sv.Epoch] = i
	}

	return ds, nil
}

// Store publishes the current ephemeris dataset. Reads are lock-free via an
// atomic pointer swap; the store itself does not serialize mutations.
// Callers that mix Clear/Restore with reads must impose single-writer
// discipline (the HTTP layer serializes mutating routes).
type Store struct {
	dataset atomic.Pointer[Dataset]
	cleared atomic.Bool
	mu      sync.Mutex // serializes fetch/restore operations
}

// NewStore creates an empty Store in the unloaded state.
func NewStore() *Store {
	return &Store{}
}

// Set publishes ds as the live dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
	s.cleared.Store(false)
}

// Get returns the live dataset, or nil when unloaded or cleared.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Clear drops the live dataset. Subsequent queries fail with ErrNotLoaded
// until Set or Restore publishes a new dataset.
func (s *Store) Clear() {
	s.dataset.Store(nil)
	s.cleared.Store(true)
}

// Restore rebuilds a dataset from a previously captured snapshot and
// publishes it, overwriting whatever is live. Idempotent when called with
// the same snapshot.
func (s *Store) Restore(snap Snapshot) error {
	ds, err := BuildDataset(snap)
	if err != nil {
		return err
	}
	s.Set(ds)
	return nil
}

// State reports the lifecycle state of the store.
func (s *Store) State() string {
	if s.dataset.Load() != nil {
		return StateLoaded
	}
	if s.cleared.Load() {
		return StateCleared
	}
	return StateUnloaded
}

// AgeSeconds returns the age of the live dataset in seconds, or -1 when
// no dataset is live.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock acquires the mutation mutex for serializing fetch/restore cycles.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the mutation mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}

// ListEpochs returns epoch strings in ascending order, skipping offset
// leading entries and returning at most limit entries. limit < 0 means
// all remaining. An offset at or past the end yields an empty slice, not
// an error. Fails with ErrNotLoaded when no dataset is live.
func (s *Store) ListEpochs(limit, offset int) ([]string, error) {
	ds := s.dataset.Load()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ds.Vectors) {
		return []string{}, nil
	}
	rest := ds.Vectors[offset:]
	if limit >= 0 && limit < len(rest) {
		rest = rest[:limit]
	}
	epochs := make([]string, len(rest))
	for i, sv := range rest {
		epochs[i] = sv.Epoch
	}
	return epochs, nil
}

// GetByEpoch returns the record whose epoch string matches exactly.
// Fails with ErrNotLoaded when no dataset is live, ErrMalformedEpoch when
// the input itself does not parse, and ErrEpochNotFound otherwise.
func (s *Store) GetByEpoch(epoch string) (StateVector, error) {
	ds := s.dataset.Load()
	if ds == nil {
		return StateVector{}, ErrNotLoaded
	}
	if _, err := ParseEpoch(epoch); err != nil {
		return StateVector{}, err
	}
	i, ok := ds.byEpoch[epoch]
	if !ok {
		return StateVector{}, ErrEpochNotFound
	}
	return ds.Vectors[i], nil
}

// NearestTo returns the record whose epoch instant has the minimum absolute
// difference to t. On an exact midpoint the earlier epoch wins. Binary
// search over the sorted vectors, O(log n).
func (s *Store) NearestTo(t time.Time) (StateVector, error) {
	ds := s.dataset.Load()
	if ds == nil {
		return StateVector{}, ErrNotLoaded
	}
	vecs := ds.Vectors

	// First index with epoch >= t.
	i := sort.Search(len(vecs), func(i int) bool {
		return !vecs[i].At.Before(t)
	})

	switch {
	case i == 0:
		return vecs[0], nil
	case i == len(vecs):
		return vecs[len(vecs)-1], nil
	}

	before := t.Sub(vecs[i-1].At)
	after := vecs[i].At.Sub(t)
	if before <= after {
		return vecs[i-1], nil
	}
	return vecs[i], nil
}
