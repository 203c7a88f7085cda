// Package timex converts between Go time values and the Cocoa-epoch
// timestamps persisted in the note database. Apple's frameworks count
// seconds from 2001-01-01 00:00:00 UTC; the store keeps that representation
// so its files stay compatible with the platform it mimics.
package timex

import (
	"encoding/json"
	"strconv"
	"time"
)

// CocoaEpoch is the reference date timestamps are counted from.
var CocoaEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// ToCocoa converts t to fractional seconds since the Cocoa epoch.
// Sub-second precision is preserved.
func ToCocoa(t time.Time) float64 {
	return t.Sub(CocoaEpoch).Seconds()
}

// FromCocoa converts fractional seconds since the Cocoa epoch back to a
// UTC time value.
func FromCocoa(ts float64) time.Time {
	return CocoaEpoch.Add(time.Duration(ts * float64(time.Second)))
}

// Duration is a time.Duration that unmarshals from JSON either as a
// string accepted by time.ParseDuration ("5m") or as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	ns, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	d.Duration = time.Duration(ns)
	return nil
}
