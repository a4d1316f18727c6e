package dram

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maemo32/memsim/internal/remap"
)

func testConfig() Config {
	return Config{
		BackingBytes:   4096,
		ReadLatency:    2,
		WriteLatency:   3,
		RefreshLatency: 1,
		RemapLatency:   4,
		QueueSize:      4,
		RemapQueueSize: 4,
	}
}

func TestSendWriteThenRead(t *testing.T) {
	a := New(testConfig(), nil)

	payload := []byte{1, 2, 3, 4}
	ok, err := a.Send(Request{Addr: 0x100, Type: WRITE, Data: payload})
	require.NoError(t, err)
	require.True(t, ok)
	a.Tick(0)
	a.Tick(3) // WriteLatency

	var got Response
	ok, err = a.Send(Request{Addr: 0x100, Type: READ, Data: make([]byte, 4), Callback: func(r Response) { got = r }})
	require.NoError(t, err)
	require.True(t, ok)
	a.Tick(3)
	a.Tick(5) // ReadLatency

	require.Equal(t, payload, got.Data)
}

func TestSendRejectsWhenQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	a := New(cfg, nil)

	ok, err := a.Send(Request{Addr: 0, Type: READ, Data: make([]byte, 4)})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.Send(Request{Addr: 64, Type: READ, Data: make([]byte, 4)})
	require.NoError(t, err)
	require.False(t, ok, "a full queue must report Busy rather than error")
}

func TestSendRemapInvokesCallback(t *testing.T) {
	a := New(testConfig(), nil)
	var done remap.RemappingRequest
	a.RegisterRemapCallback(func(r remap.RemappingRequest) { done = r })

	req := remap.RemappingRequest{AddressInFM: 0, AddressInSM: 1024, Size: 64}
	ok, err := a.SendRemap(req)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, a.QueueBusyDegree())

	a.Tick(0)
	a.Tick(4) // RemapLatency

	require.Equal(t, uint64(0), done.AddressInFM)
	require.Equal(t, 0, a.QueueBusyDegree())
}
