package handlers

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/license"
	"github.com/openpso/server/internal/lobby"
	"github.com/openpso/server/internal/model"
	"github.com/openpso/server/internal/serverstate"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() { server.Close(); peer.Close() })
	// Commands such as $warp send to the client directly; drain the peer
	// end so those writes complete.
	go io.Copy(io.Discard, peer)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return client.New(constants.VersionBB, server, log)
}

func newTestState() *serverstate.State {
	return serverstate.New("test", license.NewStore())
}

func TestChatRegistryRejectsNonCommandText(t *testing.T) {
	r := NewChatRegistry()
	_, err := r.Dispatch(newTestState(), newTestClient(t), "hello there")
	require.ErrorIs(t, err, ErrProtocolViolation)
}

func TestChatRegistryReportsUnknownCommand(t *testing.T) {
	r := NewChatRegistry()
	reply, err := r.Dispatch(newTestState(), newTestClient(t), "$nope")
	require.NoError(t, err)
	require.Contains(t, reply, "Unknown command")
}

func TestAnnRequiresPrivilege(t *testing.T) {
	r := NewChatRegistry()
	RegisterDefaultChatCommands(r)

	c, peer := newWiredTestClient(t, constants.VersionBB)
	reply, err := r.Dispatch(newTestState(), c, "$ann hello")
	require.NoError(t, err)
	require.Contains(t, reply, "permission")

	// The announcement is sent to the client as a chat command, not
	// returned as a reply.
	c.Privileges |= constants.PrivAnnounce
	sent := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := peer.Read(buf)
		sent <- buf[:n]
	}()
	reply, err = r.Dispatch(newTestState(), c, "$ann hello")
	require.NoError(t, err)
	require.Empty(t, reply)
	got := <-sent
	headerSize := constants.VersionBB.HeaderSize()
	require.Equal(t, "[Announcement] hello", decodeText(constants.VersionBB, got[headerSize:]))
}

func TestCheatRequiresLeaderAndGame(t *testing.T) {
	r := NewChatRegistry()
	RegisterDefaultChatCommands(r)

	s := newTestState()
	c := newTestClient(t)

	reply, err := r.Dispatch(s, c, "$cheat")
	require.NoError(t, err)
	require.Contains(t, reply, "game")

	game := lobby.NewLobby(s.NextGameID(), "", 4, lobby.FlagIsGame)
	s.AddLobby(game)
	require.NoError(t, game.Add(c)) // c becomes leader of an empty game

	reply, err = r.Dispatch(s, c, "$cheat")
	require.NoError(t, err)
	require.Equal(t, "Cheats are now enabled.", reply)
	require.True(t, game.Flags&lobby.FlagCheatsEnabled != 0)

	reply, err = r.Dispatch(s, c, "$cheat")
	require.NoError(t, err)
	require.Equal(t, "Cheats are now disabled.", reply)
}

func TestWarpRequiresCheats(t *testing.T) {
	r := NewChatRegistry()
	RegisterDefaultChatCommands(r)

	s := newTestState()
	c := newTestClient(t)
	game := lobby.NewLobby(s.NextGameID(), "", 4, lobby.FlagIsGame)
	s.AddLobby(game)
	require.NoError(t, game.Add(c))

	reply, err := r.Dispatch(s, c, "$warp 5")
	require.NoError(t, err)
	require.Contains(t, reply, "Cheats are not enabled")

	game.SetCheatsEnabled(true)
	reply, err = r.Dispatch(s, c, "$warp 5")
	require.NoError(t, err)
	require.Equal(t, "Warping to area 5.", reply)
}

func TestItemSeedsNextDrop(t *testing.T) {
	r := NewChatRegistry()
	RegisterDefaultChatCommands(r)

	s := newTestState()
	c := newTestClient(t)
	game := lobby.NewLobby(s.NextGameID(), "", 4, lobby.FlagIsGame)
	s.AddLobby(game)
	require.NoError(t, game.Add(c))
	game.SetCheatsEnabled(true)

	reply, err := r.Dispatch(s, c, "$item 0x000004")
	require.NoError(t, err)
	require.Equal(t, "Next drop chosen.", reply)
	require.Equal(t, byte(0x00), game.NextDropItem.Data.Data1[0])
	require.Equal(t, byte(0x00), game.NextDropItem.Data.Data1[1])
	require.Equal(t, byte(0x04), game.NextDropItem.Data.Data1[2])
}

func TestKickRequiresPrivilege(t *testing.T) {
	r := NewChatRegistry()
	RegisterDefaultChatCommands(r)

	s := newTestState()
	c := newTestClient(t)
	reply, err := r.Dispatch(s, c, "$kick someone")
	require.NoError(t, err)
	require.Contains(t, reply, "permission")

	c.Privileges |= constants.PrivKick
	reply, err = r.Dispatch(s, c, "$kick someone")
	require.NoError(t, err)
	require.Contains(t, reply, "No player named")
}

func TestEditOnlyWorksOutsideGameOnBB(t *testing.T) {
	r := NewChatRegistry()
	RegisterDefaultChatCommands(r)

	s := newTestState()
	c := newTestClient(t)
	c.Player = model.NewPlayer()

	reply, err := r.Dispatch(s, c, "$edit atp 500")
	require.NoError(t, err)
	require.Equal(t, "Set atp to 500.", reply)
	require.Equal(t, uint16(500), c.Player.Disp.Stats.ATP)

	game := lobby.NewLobby(s.NextGameID(), "", 4, lobby.FlagIsGame)
	s.AddLobby(game)
	require.NoError(t, game.Add(c))

	reply, err = r.Dispatch(s, c, "$edit atp 999")
	require.NoError(t, err)
	require.Contains(t, reply, "can't be used inside a game")
}
