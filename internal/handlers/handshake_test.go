package handlers

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/license"
	"github.com/openpso/server/internal/lobby"
)

func newTestRegistryWithHandshake() *Registry {
	r := NewRegistry()
	RegisterHandshakeHandlers(r)
	RegisterLobbyMovementHandlers(r)
	return r
}

// newWiredTestClient returns a Client plus the peer end of its connection,
// so a test can observe everything the handler writes back over the wire
// (newTestClient, used by the chat-command tests, drains and discards that
// peer end instead).
func newWiredTestClient(t *testing.T, version constants.Version) (*client.Client, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() { server.Close(); peer.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return client.New(version, server, log), peer
}

func TestServerInitInstallsCiphersAndRepliesWithSeeds(t *testing.T) {
	r := newTestRegistryWithHandshake()
	s := newTestState()
	c, peer := newWiredTestClient(t, constants.VersionPC)

	done := make(chan error, 1)
	go func() {
		done <- r.Dispatch(context.Background(), s, c, constants.CommandServerInit, 0, nil)
	}()

	buf := make([]byte, 4096)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0x48)
	require.NoError(t, <-done)
	require.NotNil(t, c.OutCipher)
	require.NotNil(t, c.InCipher)
}

func TestLoginV1RejectsUnknownSerial(t *testing.T) {
	r := newTestRegistryWithHandshake()
	s := newTestState()
	c, peer := newWiredTestClient(t, constants.VersionDCv1)

	payload := make([]byte, 0x40)
	copy(payload[0x18:], []byte("00000001"))
	copy(payload[0x29:], []byte("password"))

	done := make(chan error, 1)
	go func() {
		done <- r.Dispatch(context.Background(), s, c, constants.CommandLoginV1Dc, 0, payload)
	}()

	buf := make([]byte, 256)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.NoError(t, <-done)
	require.Nil(t, c.License)
}

func TestLoginBBSucceedsAndJoinsLobby(t *testing.T) {
	r := newTestRegistryWithHandshake()
	s := newTestState()
	c, peer := newWiredTestClient(t, constants.VersionBB)

	publicLobby := lobby.NewLobby(s.NextLobbyID(), "Main", 12, lobby.FlagPublic|lobby.FlagDefault)
	s.AddLobby(publicLobby)

	s.Licenses.Add(license.NewBBLicense(1, "tester", "hunter2"))

	payload := make([]byte, 0x9C)
	copy(payload[0x10:], []byte("tester"))
	copy(payload[0x40:], []byte("hunter2"))

	done := make(chan error, 1)
	go func() {
		done <- r.Dispatch(context.Background(), s, c, constants.CommandAuthBb, 0, payload)
	}()

	buf := make([]byte, 4096)
	// completeLogin sends the initial lobby list followed by the login
	// result; drain both.
	for i := 0; i < 2; i++ {
		n, rerr := peer.Read(buf)
		require.NoError(t, rerr)
		require.Greater(t, n, 0)
	}
	require.NoError(t, <-done)
	require.NotNil(t, c.License)
	require.Equal(t, publicLobby.ID, c.LobbyID)
}
