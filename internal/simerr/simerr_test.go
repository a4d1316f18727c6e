package simerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsWithoutCause(t *testing.T) {
	e := New(KindQueueFull, "rq full")
	require.Equal(t, "queue_full: rq full", e.Error())
	require.Nil(t, e.Unwrap())
}

func TestWrapFormatsWithCauseAndUnwraps(t *testing.T) {
	cause := errors.New("underlying")
	e := Wrap(KindDeadlock, "stuck", cause)
	require.Equal(t, "deadlock: stuck: underlying", e.Error())
	require.ErrorIs(t, e, cause)
}

func TestExitCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		KindQueueFull:                   0,
		KindMSHRFull:                    0,
		KindDeadlock:                    1,
		KindConfigInvalid:               2,
		KindPlacementInvariantViolation: 0,
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.ExitCode(), "kind %s", kind)
	}
}

func TestKindStringUnknown(t *testing.T) {
	require.Equal(t, "unknown", Kind(99).String())
}
