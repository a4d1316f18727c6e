package addr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceAndSplice(t *testing.T) {
	l := Layout{OffsetBits: 6, NumSets: 8}
	a := Address(0x1234567)

	require.Equal(t, a&0x3f, l.Offset(a))

	block := l.BlockNumber(a)
	require.Equal(t, block%8, l.SetIndex(a))
	require.Equal(t, block/8, l.Tag(a))

	spliced := l.Splice(l.Tag(a), l.SetIndex(a))
	require.Equal(t, l.BlockAddress(a), spliced)
}

func TestZeroSetsDegradesToDirectTag(t *testing.T) {
	l := Layout{OffsetBits: 4, NumSets: 0}
	a := Address(0xabc0)
	require.Equal(t, uint64(0), l.SetIndex(a), "set index is always 0 with no sets")
	require.Equal(t, l.BlockNumber(a), l.Tag(a), "tag degrades to the whole block number with no sets")
}

func TestBlockAddressMasksOffset(t *testing.T) {
	l := Layout{OffsetBits: 6, NumSets: 4}
	a := Address(0x1fff)
	got := l.BlockAddress(a)
	require.Zero(t, got&0x3f, "block address must clear the offset bits")
	require.Equal(t, a|0x3f, got|0x3f, "block address must not disturb bits above the offset")
}
