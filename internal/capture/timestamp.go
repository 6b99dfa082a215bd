package capture

import (
	"errors"
	"fmt"
	"time"
)

// DisplayLayout is the calendar layout every timestamp is rendered in.
const DisplayLayout = "2006-01-02 15:04:05"

// Placeholder replaces a timestamp that cannot be rendered.
const Placeholder = "-"

// maxMillis is 9999-12-31T23:59:59.999Z.
const maxMillis int64 = 253402300799999

// ErrInvalidTimestamp is returned for instants that are negative or beyond
// year 9999.
var ErrInvalidTimestamp = errors.New("timestamp out of range")

// Codec converts Recall's millisecond timestamps to display strings in one
// fixed UTC offset. Every adapter shares a single Codec built from config
// so all views agree on wall-clock time.
type Codec struct {
	loc *time.Location
}

// NewCodec returns a Codec rendering in the zone offset east of UTC.
func NewCodec(offset time.Duration) Codec {
	return Codec{loc: time.FixedZone(zoneName(offset), int(offset/time.Second))}
}

// Location returns the fixed zone the codec renders in.
func (c Codec) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Decode renders ms (milliseconds since epoch) in the codec's zone.
func (c Codec) Decode(ms int64) (string, error) {
	if ms < 0 || ms > maxMillis {
		return "", fmt.Errorf("%w: %d", ErrInvalidTimestamp, ms)
	}
	return time.UnixMilli(ms).In(c.Location()).Format(DisplayLayout), nil
}

// Format is Decode with the placeholder substituted on failure.
func (c Codec) Format(ms int64) string {
	s, err := c.Decode(ms)
	if err != nil {
		return Placeholder
	}
	return s
}

// Parse reads a DisplayLayout string in the codec's zone and returns
// milliseconds since epoch.
func (c Codec) Parse(s string) (int64, error) {
	t, err := time.ParseInLocation(DisplayLayout, s, c.Location())
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	ms := t.UnixMilli()
	if ms < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return ms, nil
}

// ZoneName returns the offset label, e.g. "UTC+09:00".
func (c Codec) ZoneName() string {
	name, _ := time.Now().In(c.Location()).Zone()
	return name
}

func zoneName(offset time.Duration) string {
	if offset == 0 {
		return "UTC"
	}
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%c%02d:%02d", sign, h, m)
}
