package serverstate

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/license"
	"github.com/openpso/server/internal/lobby"
)

func newTestClient() *client.Client {
	server, _ := net.Pipe()
	return client.New(constants.VersionBB, server, nil)
}

func TestLobbyIDAllocatorsDivergeByDirection(t *testing.T) {
	s := New("test", license.NewStore())
	require.Equal(t, int32(1), s.NextLobbyID())
	require.Equal(t, int32(2), s.NextLobbyID())
	require.Equal(t, int32(-1), s.NextGameID())
	require.Equal(t, int32(-2), s.NextGameID())
}

func TestAddFindRemoveLobby(t *testing.T) {
	s := New("test", license.NewStore())
	l := lobby.NewLobby(s.NextLobbyID(), "Main Lobby", 12, lobby.FlagPublic|lobby.FlagDefault)
	s.AddLobby(l)

	require.Same(t, l, s.FindLobbyByID(l.ID))
	require.Same(t, l, s.FindLobbyByName("Main Lobby"))
	require.Len(t, s.AllLobbies(), 1)

	s.RemoveLobby(l.ID)
	require.Nil(t, s.FindLobbyByID(l.ID))
	require.Nil(t, s.FindLobbyByName("Main Lobby"))
}

func TestAddClientToAvailableLobbySkipsGamesAndFullLobbies(t *testing.T) {
	s := New("test", license.NewStore())
	game := lobby.NewLobby(s.NextGameID(), "", 4, lobby.FlagIsGame)
	s.AddLobby(game)

	full := lobby.NewLobby(s.NextLobbyID(), "Full", 1, lobby.FlagPublic)
	require.NoError(t, full.Add(newTestClient()))
	s.AddLobby(full)

	open := lobby.NewLobby(s.NextLobbyID(), "Open", 12, lobby.FlagPublic)
	s.AddLobby(open)

	c := newTestClient()
	require.NoError(t, s.AddClientToAvailableLobby(c))
	require.Equal(t, open.ID, c.LobbyID)
}

func TestAddClientToAvailableLobbyFailsWhenNoneHaveRoom(t *testing.T) {
	s := New("test", license.NewStore())
	full := lobby.NewLobby(s.NextLobbyID(), "Full", 1, lobby.FlagPublic)
	require.NoError(t, full.Add(newTestClient()))
	s.AddLobby(full)

	err := s.AddClientToAvailableLobby(newTestClient())
	require.Error(t, err)
}

func TestFindClientBySerialScansAllLobbies(t *testing.T) {
	s := New("test", license.NewStore())
	l1 := lobby.NewLobby(s.NextLobbyID(), "A", 12, lobby.FlagPublic)
	l2 := lobby.NewLobby(s.NextLobbyID(), "B", 12, lobby.FlagPublic)
	s.AddLobby(l1)
	s.AddLobby(l2)

	target := newTestClient()
	lic := license.NewBBLicense(777, "target", "pw")
	target.License = &lic
	require.NoError(t, l2.Add(target))

	found := s.FindClientBySerial(777)
	require.Same(t, target, found)
	require.Nil(t, s.FindClientBySerial(1))
}
