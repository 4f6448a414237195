// Package cleaner enforces retention: old content rows and their audio,
// stale index entries, published digests past their horizon, temp segments,
// and aged log files.
package cleaner
