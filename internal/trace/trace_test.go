package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterThenReaderRoundTrips(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	records := []Record{
		{Address: 0x1000, Kind: Read},
		{Address: 0xdead, Kind: Write},
		{Address: 0xbeef, Kind: Prefetch},
	}
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())

	rd := NewReader(strings.NewReader(buf.String()))
	var got []Record
	for {
		r, ok, err := rd.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, r)
	}
	require.Equal(t, records, got)
}

func TestReaderSkipsBlankLines(t *testing.T) {
	rd := NewReader(strings.NewReader("0x10 R\n\n0x20 W\n"))
	r1, ok, err := rd.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Record{Address: 0x10, Kind: Read}, r1)

	r2, ok, err := rd.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Record{Address: 0x20, Kind: Write}, r2)

	_, ok, err = rd.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReaderRejectsMalformedLine(t *testing.T) {
	rd := NewReader(strings.NewReader("not-a-valid-line\n"))
	_, _, err := rd.Next()
	require.Error(t, err)
}
