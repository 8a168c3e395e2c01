package ephem

import (
	"bytes"
	"encoding/json"
	"time"
)

// Vec3 is a Cartesian triple. Positions are km, velocities km/s.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RawRecord is one upstream state-vector row before epoch validation.
// The fetch/parse collaborator produces these; Load turns them into
// StateVectors.
type RawRecord struct {
	Epoch string
	X     float64
	Y     float64
	Z     float64
	XDot  float64
	YDot  float64
	ZDot  float64
}

// StateVector is one ephemeris record: position and velocity in the J2000
// inertial frame at an epoch. Immutable once loaded.
type StateVector struct {
	Epoch    string    `json:"epoch"`
	At       time.Time `json:"-"`
	Position Vec3      `json:"position_km"`
	Velocity Vec3      `json:"velocity_km_s"`
}

// Field is one key/value pair of a Document.
type Field struct {
	Key   string
	Value any
}

// Document is an opaque, order-preserving key/value block passed through
// verbatim from the upstream XML (header, metadata). Values are strings,
// []string, or nested Documents; nothing here is interpreted.
type Document []Field

// Get returns the value for key, or nil if absent.
func (d Document) Get(key string) any {
	for _, f := range d {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// MarshalJSON emits the fields as a JSON object in insertion order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Dataset is one loaded ephemeris: state vectors sorted by epoch ascending
// plus the upstream comment/header/metadata blocks carried verbatim.
// Datasets are immutable after construction; the Store swaps whole datasets.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Vectors   []StateVector
	Skipped   int // raw records dropped during Load (malformed or duplicate)

	Comment  []string
	Header   Document
	Metadata Document

	byEpoch map[string]int // epoch string -> index into Vectors
}

// Size returns the number of state vectors.
func (d *Dataset) Size() int {
	return len(d.Vectors)
}

// EpochRange returns the first and last epoch instants. Zero times when the
// dataset is empty.
func (d *Dataset) EpochRange() (min, max time.Time) {
	if len(d.Vectors) == 0 {
		return
	}
	return d.Vectors[0].At, d.Vectors[len(d.Vectors)-1].At
}
