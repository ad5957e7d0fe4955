package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func offsetAt(t *testing.T, loc *time.Location, when time.Time) int {
	t.Helper()
	_, off := when.In(loc).Zone()
	return off
}

func TestPosixWithDST(t *testing.T) {
	loc, err := Load("EST5EDT,M3.2.0,M11.1.0")
	require.NoError(t, err)

	winter := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC)
	require.Equal(t, -5*3600, offsetAt(t, loc, winter))
	require.Equal(t, -4*3600, offsetAt(t, loc, summer))

	name, _ := summer.In(loc).Zone()
	require.Equal(t, "EDT", name)

	// 2024-03-10 is the second Sunday of March; the switch is at 02:00 local.
	before := time.Date(2024, time.March, 10, 6, 59, 0, 0, time.UTC)
	after := time.Date(2024, time.March, 10, 7, 1, 0, 0, time.UTC)
	require.Equal(t, -5*3600, offsetAt(t, loc, before))
	require.Equal(t, -4*3600, offsetAt(t, loc, after))
}

func TestPosixFixed(t *testing.T) {
	loc, err := Load("UTC0")
	require.NoError(t, err)
	require.Equal(t, 0, offsetAt(t, loc, time.Now()))

	loc, err = Load("<+0530>-5:30")
	require.NoError(t, err)
	require.Equal(t, 5*3600+30*60, offsetAt(t, loc, time.Now()))

	loc, err = Load("JST-9")
	require.NoError(t, err)
	require.Equal(t, 9*3600, offsetAt(t, loc, time.Now()))
}

func TestPosixHourLabel(t *testing.T) {
	loc, err := Load("PST8PDT,M3.2.0,M11.1.0")
	require.NoError(t, err)

	// 17:00 UTC in July is 10 AM Pacific daylight time.
	local := time.Date(2024, time.July, 4, 17, 0, 0, 0, time.UTC).In(loc)
	require.Equal(t, 10, local.Hour())
}

func TestEmptyIsUTC(t *testing.T) {
	loc, err := Load("  ")
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestInvalid(t *testing.T) {
	for _, s := range []string{"E5", "EST99", "<>5", "123", "EST5E,M3.2.0"} {
		_, err := Load(s)
		require.ErrorIs(t, err, ErrInvalid, s)
	}
}
