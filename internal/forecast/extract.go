package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/ncruces/go-strftime"
)

// ErrMalformed is returned when a structurally valid payload does not carry
// the fields a forecast entry needs.
var ErrMalformed = errors.New("malformed forecast payload")

// Extractor turns an assembled provider response into chart samples.
//
// The payload follows the OpenWeatherMap 3-hour forecast shape:
//
//	{"list":[{"dt":1700000000,"main":{"temp":40.2},"pop":0.1}, ...]}
type Extractor struct {
	// Entries caps the number of samples taken from the list.
	Entries int
	// Location is used for hour labels; nil means UTC.
	Location *time.Location
}

// NewExtractor creates an extractor taking at most entries samples.
func NewExtractor(entries int) *Extractor {
	if entries <= 0 {
		entries = DefaultEntries
	}
	return &Extractor{Entries: entries, Location: time.UTC}
}

// Extract reads the first Entries elements of the payload's list field, in
// order, and tightens bounds with each sample's temperature. An absent or
// empty list yields no samples and leaves bounds untouched. Bounds are only
// updated once every taken entry has been read successfully.
func (e *Extractor) Extract(payload []byte, bounds *Bounds) ([]Sample, error) {
	list, typ, _, err := jsonparser.Get(payload, "list")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	case typ == jsonparser.Null:
		return nil, nil
	case typ != jsonparser.Array:
		return nil, fmt.Errorf("%w: list is %s", ErrMalformed, typ)
	}

	limit := e.Entries
	if limit <= 0 {
		limit = DefaultEntries
	}

	samples := make([]Sample, 0, limit)
	var entryErr error
	_, err = jsonparser.ArrayEach(list, func(value []byte, _ jsonparser.ValueType, _ int, err error) {
		if entryErr != nil || len(samples) == limit {
			return
		}
		if err != nil {
			entryErr = err
			return
		}
		s, err := e.sample(value)
		if err != nil {
			entryErr = fmt.Errorf("entry %d: %w", len(samples), err)
			return
		}
		samples = append(samples, s)
	})
	if err == nil {
		err = entryErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if bounds != nil {
		for _, s := range samples {
			bounds.Observe(s.Temp)
		}
	}
	return samples, nil
}

func (e *Extractor) sample(entry []byte) (Sample, error) {
	temp, err := jsonparser.GetFloat(entry, "main", "temp")
	if err != nil {
		return Sample{}, fmt.Errorf("main.temp: %w", err)
	}
	dt, err := jsonparser.GetInt(entry, "dt")
	if err != nil {
		return Sample{}, fmt.Errorf("dt: %w", err)
	}
	// pop is read as zero when absent.
	pop, err := jsonparser.GetFloat(entry, "pop")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return Sample{}, fmt.Errorf("pop: %w", err)
	}

	ts := time.Unix(dt, 0)
	return Sample{
		Label:  HourLabel(ts, e.Location),
		Temp:   temp,
		Precip: Percent(pop),
		Time:   ts.UTC(),
	}, nil
}

// Percent converts a probability fraction to whole percent. The fractional
// part is truncated, not rounded: 0.456 is 45. The product is taken in
// single precision, as the firmware does, so 0.29 is 29 rather than 28.
func Percent(fraction float64) int {
	f := float32(fraction) * 100
	p := int(f)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// HourLabel formats t as a 12-hour clock hour with meridiem in loc, without
// a leading zero: "9 AM", "12 PM".
func HourLabel(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return strings.TrimPrefix(strftime.Format("%I %p", t.In(loc)), "0")
}
