package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/serverstate"
)

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	r := NewRegistry()
	s := newTestState()
	c := newTestClient(t)

	var gotFlag uint32
	var gotPayload []byte
	r.Register(0x06, func(_ context.Context, _ *serverstate.State, _ *client.Client, flag uint32, payload []byte) error {
		gotFlag = flag
		gotPayload = append([]byte(nil), payload...)
		return nil
	}, constants.VersionBB)

	err := r.Dispatch(context.Background(), s, c, 0x06, 0x01, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint32(0x01), gotFlag)
	require.Equal(t, []byte("hello"), gotPayload)
}

func TestDispatchFailsForUnregisteredCommand(t *testing.T) {
	r := NewRegistry()
	err := r.Dispatch(context.Background(), newTestState(), newTestClient(t), 0x99, 0, nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDispatchDoesNotMatchAcrossVersions(t *testing.T) {
	r := NewRegistry()
	r.Register(0x06, func(context.Context, *serverstate.State, *client.Client, uint32, []byte) error {
		return nil
	}, constants.VersionPC)

	c := newTestClient(t) // VersionBB
	err := r.Dispatch(context.Background(), newTestState(), c, 0x06, 0, nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestAllVersionsRegistersEveryDialect(t *testing.T) {
	r := NewRegistry()
	r.Register(0x06, func(context.Context, *serverstate.State, *client.Client, uint32, []byte) error {
		return nil
	}, AllVersions()...)

	require.Len(t, AllVersions(), 6)

	c := newTestClient(t)
	require.NoError(t, r.Dispatch(context.Background(), newTestState(), c, 0x06, 0, nil))
}
