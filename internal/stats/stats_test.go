package stats

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSinkCloseWritesFlatFile(t *testing.T) {
	var buf strings.Builder
	s := New(&buf)
	s.Counters.VirtualPageCount = 42
	s.Counters.ReadRequestInMemory = [2]uint64{10, 3}
	s.Counters.SwappingCount = 2

	require.NoError(t, s.Close())

	out := buf.String()
	require.Contains(t, out, "virtual_page_count 42\n")
	require.Contains(t, out, "read_request_in_memory[0] 10\n")
	require.Contains(t, out, "read_request_in_memory[1] 3\n")
	require.Contains(t, out, "swapping_count 2\n")
}

func TestSinkCloseWithNilWriterIsNoop(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Close())
}

func TestSimCollectorGatherable(t *testing.T) {
	s := New(nil)
	s.Counters.SwappingCount = 7
	c := NewSimCollector(s)

	count := testutil.CollectAndCount(c)
	require.Equal(t, 8, count, "read/write request metrics emit one sample per memory label on top of the four scalar counters")
}
