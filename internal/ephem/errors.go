package ephem

import "errors"

// Sentinel errors returned by the epoch parser and the store. The HTTP
// layer maps these onto status codes; the core returns them unwrapped or
// wrapped with %w so callers can test with errors.Is.
var (
	// ErrMalformedEpoch indicates an epoch string that does not match the
	// <year>-<day-of-year>T<HH:MM:SS.sss>Z format or encodes an invalid
	// calendar/clock value.
	ErrMalformedEpoch = errors.New("malformed epoch")

	// ErrEpochNotFound indicates no stored record has the exact epoch.
	ErrEpochNotFound = errors.New("epoch not found")

	// ErrNotLoaded indicates the store holds no dataset, either because
	// nothing was ever loaded or because the dataset was cleared.
	ErrNotLoaded = errors.New("ephemeris not loaded")

	// ErrEmptyDataset indicates a load attempt in which no raw record
	// parsed successfully.
	ErrEmptyDataset = errors.New("no valid records in dataset")
)
