// Package timeutil holds the single canonical timezone (Asia/Taipei,
// UTC+8): Now returns the current instant, Format renders an instant in
// that zone, and InZone reinterprets a zone-less time as being in it.
// The Store does not route its timestamps through this package: it
// writes time.Time values as the sqlite driver encodes them, columns
// filled by DEFAULT CURRENT_TIMESTAMP hold SQLite's UTC text, and
// nothing on the read path calls InZone. JSON responses encode
// time.Time values directly rather than through Format.
package timeutil

import "time"

// Zone is the canonical zone scenarios in spec.md are expressed in.
var Zone = mustLoad("Asia/Taipei")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Asia/Taipei has no daylight saving rules and a fixed +08:00
		// offset; falling back keeps the orchestrator running even on a
		// minimal container image without a tzdata package installed.
		return time.FixedZone(name, 8*60*60)
	}
	return loc
}

// Now returns the current instant. Call sites should treat the return
// value as an opaque instant (compare, store, subtract) and only call
// Format when producing output for a human or a JSON payload.
func Now() time.Time {
	return time.Now()
}

// Format renders t in the canonical zone using RFC3339.
func Format(t time.Time) string {
	return t.In(Zone).Format(time.RFC3339)
}

// InZone reinterprets a naive (zone-less) instant as already being in the
// canonical zone, matching spec.md §4.1's "a stored timestamp with no zone
// attached is interpreted as that canonical zone on read."
func InZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), Zone)
}
