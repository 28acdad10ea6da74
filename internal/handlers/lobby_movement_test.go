package handlers

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/lobby"
)

func menuSelectBody(menuID uint32, itemID int32) []byte {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[0:4], menuID)
	binary.LittleEndian.PutUint32(body[4:8], uint32(itemID))
	return body
}

func TestMenuSelect09JoinsExistingLobby(t *testing.T) {
	r := NewRegistry()
	RegisterLobbyMovementHandlers(r)

	s := newTestState()
	c, peer := newWiredTestClient(t, constants.VersionBB)
	dst := lobby.NewLobby(s.NextLobbyID(), "Lobby 2", 12, lobby.FlagPublic)
	s.AddLobby(dst)

	done := make(chan error, 1)
	go func() {
		done <- r.Dispatch(context.Background(), s, c, constants.CommandMenuSelect, 0, menuSelectBody(menuIDLobby, dst.ID))
	}()

	buf := make([]byte, 4096)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.NoError(t, <-done)
	require.Equal(t, dst.ID, c.LobbyID)
}

func TestMenuSelect10CreatesGame(t *testing.T) {
	r := NewRegistry()
	RegisterLobbyMovementHandlers(r)

	s := newTestState()
	c, peer := newWiredTestClient(t, constants.VersionBB)

	body := menuSelectBody(menuIDGame, 0)
	body = append(body, []byte("My Game")...)

	done := make(chan error, 1)
	go func() {
		done <- r.Dispatch(context.Background(), s, c, constants.CommandMenuSelect10, 2, body)
	}()

	buf := make([]byte, 4096)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.NoError(t, <-done)

	game := s.FindLobbyByID(c.LobbyID)
	require.NotNil(t, game)
	require.True(t, game.IsGame())
}

func TestLeaderChangeRequiresCurrentLeader(t *testing.T) {
	r := NewRegistry()
	RegisterLobbyMovementHandlers(r)

	s := newTestState()
	leader, leaderPeer := newWiredTestClient(t, constants.VersionBB)
	follower, followerPeer := newWiredTestClient(t, constants.VersionBB)

	game := lobby.NewLobby(s.NextGameID(), "Game", 4, lobby.FlagIsGame)
	s.AddLobby(game)
	require.NoError(t, game.Add(leader))
	require.NoError(t, game.Add(follower))
	require.Equal(t, leader.LobbyClientID, game.LeaderID)

	done := make(chan error, 1)
	go func() {
		done <- r.Dispatch(context.Background(), s, leader, constants.CommandLeaderChange, 0, []byte{byte(follower.LobbyClientID)})
	}()

	// The broadcast goes to every occupant, including the leader itself;
	// drain both ends so neither write blocks forever.
	buf := make([]byte, 256)
	doneReads := make(chan struct{}, 2)
	go func() { leaderPeer.Read(buf); doneReads <- struct{}{} }()
	go func() { followerPeer.Read(make([]byte, 256)); doneReads <- struct{}{} }()
	<-doneReads
	<-doneReads

	require.NoError(t, <-done)
	require.Equal(t, follower.LobbyClientID, game.LeaderID)

	// The former leader no longer leads, so its request is ignored.
	require.NoError(t, r.Dispatch(context.Background(), s, leader, constants.CommandLeaderChange, 0, []byte{byte(leader.LobbyClientID)}))
	require.Equal(t, follower.LobbyClientID, game.LeaderID)
}

func TestGameLeaveReturnsClientToLobby(t *testing.T) {
	r := NewRegistry()
	RegisterLobbyMovementHandlers(r)

	s := newTestState()
	c, peer := newWiredTestClient(t, constants.VersionBB)

	publicLobby := lobby.NewLobby(s.NextLobbyID(), "Main", 12, lobby.FlagPublic|lobby.FlagDefault)
	s.AddLobby(publicLobby)
	game := lobby.NewLobby(s.NextGameID(), "Game", 4, lobby.FlagIsGame)
	s.AddLobby(game)
	require.NoError(t, game.Add(c))

	done := make(chan error, 1)
	go func() {
		done <- r.Dispatch(context.Background(), s, c, constants.CommandGameLeave, 0, nil)
	}()

	buf := make([]byte, 256)
	// leaveCurrentContainer first broadcasts a leave (to the now-empty
	// game, so no other recipient), then sends the client its own join
	// confirmation for the lobby it lands in.
	n, err := peer.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.NoError(t, <-done)
	require.Equal(t, publicLobby.ID, c.LobbyID)
	require.Equal(t, 0, game.CountClients())
}
