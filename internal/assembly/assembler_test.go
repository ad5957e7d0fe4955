package assembly

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const doc = `{"cod":"200","cnt":2,"list":[` +
	`{"dt":1705327200,"main":{"temp":40.2},"pop":0.1},` +
	`{"dt":1705338000,"main":{"temp":45.0},"pop":0.5}]}`

const event = "hook-response/weather/"

func feed(t *testing.T, a *Assembler, chunks ...string) {
	t.Helper()
	for i, c := range chunks {
		require.NoError(t, a.AddChunk(event+strconv.Itoa(i), []byte(c)))
	}
}

func TestSingleChunk(t *testing.T) {
	a := New(DefaultCapacity)
	feed(t, a, doc)

	p, err := a.TryParse()
	require.NoError(t, err)
	require.JSONEq(t, doc, string(p))
	require.Zero(t, a.Len())
}

func TestSplitMatchesSingle(t *testing.T) {
	whole := New(DefaultCapacity)
	feed(t, whole, doc)
	p1, err := whole.TryParse()
	require.NoError(t, err)

	split := New(DefaultCapacity)
	third := len(doc) / 3
	chunks := []string{doc[:third], doc[third : 2*third], doc[2*third:]}

	require.NoError(t, split.AddChunk(event+"0", []byte(chunks[0])))
	_, err = split.TryParse()
	require.ErrorIs(t, err, ErrIncomplete)

	require.NoError(t, split.AddChunk(event+"1", []byte(chunks[1])))
	_, err = split.TryParse()
	require.ErrorIs(t, err, ErrIncomplete)

	require.NoError(t, split.AddChunk(event+"2", []byte(chunks[2])))
	p2, err := split.TryParse()
	require.NoError(t, err)

	require.Equal(t, p1, p2)
}

func TestIncomplete(t *testing.T) {
	for _, partial := range []string{
		"",
		"   ",
		`{`,
		`{"list":[`,
		`{"list":[{"dt":17053`,
		`{"list":[{"name":"cle`,
		`{"ok":tr`,
		`{"ok":true}`[:10],
	} {
		a := New(DefaultCapacity)
		require.NoError(t, a.AddChunk("weather", []byte(partial)))
		_, err := a.TryParse()
		require.ErrorIs(t, err, ErrIncomplete, "input %q", partial)
		require.Equal(t, len(partial), a.Len(), "incomplete input must stay buffered")
	}
}

func TestMalformed(t *testing.T) {
	for _, bad := range []string{
		`[1,2,3]`,
		`{"a":}`,
		`{"a":1}}`,
		`{"a" 1}`,
		`{"ok":trux}`,
		`hello`,
	} {
		a := New(DefaultCapacity)
		require.NoError(t, a.AddChunk("weather", []byte(bad)))
		_, err := a.TryParse()
		require.ErrorIs(t, err, ErrMalformed, "input %q", bad)
		require.Zero(t, a.Len(), "malformed input is discarded")
	}
}

func TestCapacityExceeded(t *testing.T) {
	a := New(64)
	body := `{"list":[` + strings.Repeat(`{"dt":1},`, 10) + `{"dt":1}]}`
	require.Greater(t, len(body), 64)

	require.NoError(t, a.AddChunk(event+"0", []byte(body[:40])))
	err := a.AddChunk(event+"1", []byte(body[40:80]))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Zero(t, a.Len())

	// The rest of the abandoned response never parses.
	require.ErrorIs(t, a.AddChunk(event+"2", []byte(body[80:])), ErrDiscarding)
	_, err = a.TryParse()
	require.ErrorIs(t, err, ErrDiscarding)

	// A new response starts over.
	require.NoError(t, a.AddChunk(event+"0", []byte(`{"list":[]}`)))
	p, err := a.TryParse()
	require.NoError(t, err)
	require.Equal(t, `{"list":[]}`, string(p))
}

func TestExactCapacityFits(t *testing.T) {
	a := New(len(doc))
	require.NoError(t, a.AddChunk("weather", []byte(doc)))
	_, err := a.TryParse()
	require.NoError(t, err)
}

func TestFirstChunkRestarts(t *testing.T) {
	a := New(DefaultCapacity)
	require.NoError(t, a.AddChunk(event+"0", []byte(`{"list":[{"dt"`)))
	// A stale partial response is replaced when a new one begins.
	require.NoError(t, a.AddChunk(event+"0", []byte(doc)))
	p, err := a.TryParse()
	require.NoError(t, err)
	require.JSONEq(t, doc, string(p))
}

func TestConsumedAfterParse(t *testing.T) {
	a := New(DefaultCapacity)
	require.NoError(t, a.AddChunk("weather", []byte(`{"n":1}`)))
	_, err := a.TryParse()
	require.NoError(t, err)

	require.NoError(t, a.AddChunk("weather", []byte(`{"n":2}`)))
	p, err := a.TryParse()
	require.NoError(t, err)
	require.Equal(t, `{"n":2}`, string(p))
}

func TestChunkIndex(t *testing.T) {
	n, ok := ChunkIndex("dev/hook-response/weather/3")
	require.True(t, ok)
	require.Equal(t, 3, n)

	for _, ev := range []string{"weather", "weather/", "weather/x", "weather/-1"} {
		_, ok := ChunkIndex(ev)
		require.False(t, ok, ev)
	}
}
