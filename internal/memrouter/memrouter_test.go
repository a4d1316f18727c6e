package memrouter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteNearFar(t *testing.T) {
	r := New(1024)

	id, local := r.Route(100)
	require.Equal(t, Near, id)
	require.Equal(t, uint64(100), local)

	id, local = r.Route(1024)
	require.Equal(t, Far, id)
	require.Equal(t, uint64(0), local)

	id, local = r.Route(2048)
	require.Equal(t, Far, id)
	require.Equal(t, uint64(1024), local)
}

func TestComposeInvertsRoute(t *testing.T) {
	r := New(1024)
	for _, hw := range []uint64{0, 512, 1023, 1024, 3000} {
		id, local := r.Route(hw)
		require.Equal(t, hw, r.Compose(id, local))
	}
}
