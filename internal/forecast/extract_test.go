package forecast

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var est = time.FixedZone("EST", -5*60*60)

type testEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Pop float64 `json:"pop"`
}

func payload(t *testing.T, temps, pops []float64, times []time.Time) []byte {
	t.Helper()
	entries := make([]testEntry, len(temps))
	for i := range temps {
		entries[i].Dt = times[i].Unix()
		entries[i].Main.Temp = temps[i]
		entries[i].Pop = pops[i]
	}
	b, err := json.Marshal(map[string]any{"cod": "200", "cnt": len(entries), "list": entries})
	require.NoError(t, err)
	return b
}

func hours(local ...int) []time.Time {
	ts := make([]time.Time, len(local))
	for i, h := range local {
		ts[i] = time.Date(2024, time.January, 15, h, 0, 0, 0, est)
	}
	return ts
}

func TestExtractScenario(t *testing.T) {
	ex := NewExtractor(4)
	ex.Location = est
	bounds := NewBounds()

	samples, err := ex.Extract(payload(t,
		[]float64{40.2, 45.0, 38.5, 42.1},
		[]float64{0.1, 0.5, 0.2, 0.9},
		hours(9, 12, 15, 18),
	), &bounds)
	require.NoError(t, err)
	require.Len(t, samples, 4)

	var labels []string
	var precip []int
	for _, s := range samples {
		labels = append(labels, s.Label)
		precip = append(precip, s.Precip)
	}
	require.Equal(t, []string{"9 AM", "12 PM", "3 PM", "6 PM"}, labels)
	require.Equal(t, []int{10, 50, 20, 90}, precip)
	require.Equal(t, 38.5, bounds.Min)
	require.Equal(t, 45.0, bounds.Max)
}

func TestExtractTruncatesToEntries(t *testing.T) {
	ex := NewExtractor(4)
	ex.Location = est
	bounds := NewBounds()

	// The fifth and sixth entries hold the extremes; they must not count.
	samples, err := ex.Extract(payload(t,
		[]float64{50, 51, 52, 53, -20, 120},
		[]float64{0, 0, 0, 0, 1, 1},
		hours(0, 3, 6, 9, 12, 15),
	), &bounds)
	require.NoError(t, err)
	require.Len(t, samples, 4)
	require.Equal(t, 50.0, samples[0].Temp)
	require.Equal(t, 53.0, samples[3].Temp)
	require.Equal(t, Bounds{Min: 50, Max: 53}, bounds)
}

func TestExtractShortList(t *testing.T) {
	ex := NewExtractor(4)
	bounds := NewBounds()

	samples, err := ex.Extract(payload(t,
		[]float64{61.5, 58.25},
		[]float64{0.3, 0},
		hours(9, 12),
	), &bounds)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.Equal(t, 61.5, samples[0].Temp)
	require.Equal(t, 58.25, samples[1].Temp)

	for _, s := range samples {
		require.GreaterOrEqual(t, s.Temp, bounds.Min)
		require.LessOrEqual(t, s.Temp, bounds.Max)
	}
}

func TestExtractEmptyListKeepsBounds(t *testing.T) {
	ex := NewExtractor(4)

	for name, body := range map[string]string{
		"empty":  `{"list":[]}`,
		"absent": `{"cod":"200"}`,
		"null":   `{"list":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			bounds := Bounds{Min: 30, Max: 70}
			samples, err := ex.Extract([]byte(body), &bounds)
			require.NoError(t, err)
			require.Empty(t, samples)
			require.Equal(t, Bounds{Min: 30, Max: 70}, bounds)
		})
	}
}

func TestExtractBoundsAccumulate(t *testing.T) {
	ex := NewExtractor(4)
	bounds := NewBounds()

	_, err := ex.Extract(payload(t, []float64{40, 42}, []float64{0, 0}, hours(1, 2)), &bounds)
	require.NoError(t, err)
	_, err = ex.Extract(payload(t, []float64{44, 41}, []float64{0, 0}, hours(3, 4)), &bounds)
	require.NoError(t, err)

	require.Equal(t, Bounds{Min: 40, Max: 44}, bounds)
}

func TestExtractMalformed(t *testing.T) {
	ex := NewExtractor(4)

	for name, body := range map[string]string{
		"list not array": `{"list":{"dt":1}}`,
		"missing temp":   `{"list":[{"dt":1700000000,"pop":0.2}]}`,
		"missing dt":     `{"list":[{"main":{"temp":40},"pop":0.2}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			bounds := NewBounds()
			_, err := ex.Extract([]byte(body), &bounds)
			require.ErrorIs(t, err, ErrMalformed)
			require.False(t, bounds.Valid())
		})
	}
}

func TestExtractMissingPopIsZero(t *testing.T) {
	ex := NewExtractor(4)
	samples, err := ex.Extract([]byte(`{"list":[{"dt":1700000000,"main":{"temp":40}}]}`), nil)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, 0, samples[0].Precip)
}

func TestPercent(t *testing.T) {
	require.Equal(t, 0, Percent(0.0))
	require.Equal(t, 100, Percent(1.0))
	require.Equal(t, 45, Percent(0.456))
	require.Equal(t, 99, Percent(0.999))
	require.Equal(t, 29, Percent(0.29))
	require.Equal(t, 57, Percent(0.57))
	require.Equal(t, 58, Percent(0.58))
	require.Equal(t, 0, Percent(-0.2))
	require.Equal(t, 100, Percent(1.7))
}

func TestHourLabel(t *testing.T) {
	require.Equal(t, "9 AM", HourLabel(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.UTC))
	require.Equal(t, "12 PM", HourLabel(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.UTC))
	require.Equal(t, "12 AM", HourLabel(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC))
	require.Equal(t, "11 PM", HourLabel(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC), time.UTC))

	// 14:00 UTC is 9 AM five hours west.
	require.Equal(t, "9 AM", HourLabel(time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC), est))
	require.Equal(t, "2 PM", HourLabel(time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC), nil))
}

func TestBounds(t *testing.T) {
	b := NewBounds()
	require.False(t, b.Valid())
	require.True(t, math.IsInf(b.Min, 1))

	b.Observe(12.5)
	require.True(t, b.Valid())
	require.Equal(t, Bounds{Min: 12.5, Max: 12.5}, b)

	b.Observe(-3)
	b.Observe(7)
	require.Equal(t, Bounds{Min: -3, Max: 12.5}, b)
}
