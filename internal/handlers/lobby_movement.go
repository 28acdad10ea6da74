package handlers

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/lobby"
	"github.com/openpso/server/internal/serverstate"
)

// RegisterLobbyMovementHandlers registers the menu-selection and
// join/leave/leader-change commands that move a client between lobbies
// and games (spec.md §4I's lobby-movement family: 07/08/10/64/65/66/67/
// 68/69/83/84). Dispatch itself (relaying the bytes to the right client
// at the right time) is in scope even though reproducing each
// subcommand's in-game effect is not.
func RegisterLobbyMovementHandlers(r *Registry) {
	all := AllVersions()

	r.Register(constants.CommandMenuSelect, handleMenuSelect09, all...)
	r.Register(constants.CommandMenuSelect10, handleMenuSelect10, all...)
	r.Register(constants.CommandGameLeave, handleGameLeave, all...)
	r.Register(constants.CommandLobbyLeave, handleLobbyLeave, all...)
	r.Register(constants.CommandLobbyChat68, handleLobbyChat68, all...)
	r.Register(constants.CommandLeaderChange, handleLeaderChange, all...)
	r.Register(constants.CommandGameNameChange, handleGameNameChange, all...)
	r.Register(constants.CommandLobbyArrowList, handleArrowList, all...)
}

// menuIDLobby is the well-known menu id original_source uses for "pick one
// of the server's persistent lobbies"; menuIDGame is its game-list
// counterpart. A client's 09/10 selection names one of these as menu_id
// and the target lobby/game id as item_id.
const (
	menuIDLobby = 0x00000001
	menuIDGame  = 0x00000002
)

// sendLobbyList sends the client the current roster of persistent, public
// lobbies as a flat id/flags/name menu (spec.md §4I command 0x07:
// "server->client lobby member list"). Each entry is a fixed 0x1C-byte
// record: item_id(4) a_flags(4) name[0x14 UTF-16].
func sendLobbyList(s *serverstate.State, c *client.Client) error {
	const entrySize = 4 + 4 + 0x14
	var lobbies []*lobby.Lobby
	for _, l := range s.AllLobbies() {
		if !l.IsGame() && l.Flags&lobby.FlagPublic != 0 {
			lobbies = append(lobbies, l)
		}
	}

	body := make([]byte, len(lobbies)*entrySize)
	for i, l := range lobbies {
		off := i * entrySize
		binary.LittleEndian.PutUint32(body[off:off+4], uint32(l.ID))
		binary.LittleEndian.PutUint32(body[off+4:off+8], uint32(l.Flags))
		name := encodeText(c.Version, l.Name)
		copy(body[off+8:off+entrySize], name)
	}
	return c.Send(constants.CommandLobbyList, uint32(len(lobbies)), body)
}

// sendGameList sends the client the current roster of games (spec.md §4I
// command 0x08). Each entry mirrors sendLobbyList's shape plus a
// difficulty/episode byte pair original_source's S_GameList carries.
func sendGameList(s *serverstate.State, c *client.Client) error {
	const entrySize = 4 + 4 + 0x14 + 2
	var games []*lobby.Lobby
	for _, l := range s.AllLobbies() {
		if l.IsGame() {
			games = append(games, l)
		}
	}

	body := make([]byte, len(games)*entrySize)
	for i, l := range games {
		off := i * entrySize
		binary.LittleEndian.PutUint32(body[off:off+4], uint32(l.ID))
		binary.LittleEndian.PutUint32(body[off+4:off+8], uint32(l.Flags))
		name := encodeText(c.Version, l.Name)
		copy(body[off+8:off+8+0x14], name)
		body[off+8+0x14] = l.Difficulty
		body[off+8+0x14+1] = l.Episode
	}
	return c.Send(constants.CommandGameList, uint32(len(games)), body)
}

// menuSelectPayload decodes the 09/10 family's common 8-byte prefix:
// menu_id(4) item_id(4), grounded on original_source's
// C_MenuSelection_10_09's leading fields.
func menuSelectPayload(payload []byte) (menuID uint32, itemID int32, ok bool) {
	if len(payload) < 8 {
		return 0, 0, false
	}
	menuID = binary.LittleEndian.Uint32(payload[0:4])
	itemID = int32(binary.LittleEndian.Uint32(payload[4:8]))
	return menuID, itemID, true
}

// moveAndAnnounce relocates c into dst, notifying dst's other occupants
// that c joined and c's former container (if any) that c left. Command
// 0x64/0x65 carry the join notification depending on whether dst is a
// game or a lobby; 0x67 carries the leave side (spec.md §4F's join/leave
// notification pair, grounded on original_source's
// send_join_notifications / send_player_leave_notification).
func moveAndAnnounce(s *serverstate.State, c *client.Client, dst *lobby.Lobby) error {
	src := s.FindLobbyByID(c.LobbyID)

	if src != nil {
		if err := lobby.Move(src, dst, c); err != nil {
			return err
		}
	} else if err := dst.Add(c); err != nil {
		return err
	}

	joinCommand := uint16(constants.CommandLobbyJoin)
	if dst.IsGame() {
		joinCommand = constants.CommandGameJoin
	}
	clientID := uint8(c.LobbyClientID)
	joinBody := []byte{clientID, uint8(dst.LeaderID)}
	if err := c.Send(joinCommand, uint32(dst.CountClients()), joinBody); err != nil {
		return fmt.Errorf("lobby move: notifying %d of its own join: %w", c.LobbyClientID, err)
	}
	dst.Broadcast(c, func(target *client.Client) error {
		return target.Send(joinCommand, uint32(dst.CountClients()), joinBody)
	})

	if src != nil {
		src.Broadcast(nil, func(target *client.Client) error {
			return target.Send(constants.CommandLobbyLeave, uint32(clientID), []byte{clientID})
		})
	}
	return nil
}

// handleMenuSelect09 implements the plain (no password, no game-create)
// menu selection: picking a lobby row moves the client there directly;
// picking a game row joins that game (spec.md §4I command 0x09).
func handleMenuSelect09(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	menuID, itemID, ok := menuSelectPayload(payload)
	if !ok {
		return fmt.Errorf("menu select: payload too short: %w", ErrProtocolViolation)
	}

	switch menuID {
	case menuIDLobby:
		dst := s.FindLobbyByID(itemID)
		if dst == nil || dst.IsGame() {
			return c.Send(constants.CommandLobbyJoin, 0, []byte{0xFF})
		}
		return moveAndAnnounce(s, c, dst)
	case menuIDGame:
		dst := s.FindLobbyByID(itemID)
		if dst == nil || !dst.IsGame() {
			return c.Send(constants.CommandGameJoin, 0, []byte{0xFF})
		}
		return moveAndAnnounce(s, c, dst)
	default:
		return sendLobbyList(s, c)
	}
}

// handleMenuSelect10 implements the four flag-keyed variants of command
// 0x10 (spec.md §4I: "command 10 has 4 format variants keyed by
// flag & 0x03"), grounded on original_source's handling of
// C_MenuSelection_10_09 with extra trailing fields depending on the
// client's reported flag:
//
//	flag&0x03 == 0: plain join, no password — item_id names an existing
//	  game to join.
//	flag&0x03 == 1: join with password — a fixed 0x10-byte UTF-16
//	  password field follows item_id; this implementation accepts any
//	  password since password storage isn't modeled (see DESIGN.md).
//	flag&0x03 == 2: create a new game — item_id is unused, a 0x10-byte
//	  UTF-16 name field follows instead.
//	flag&0x03 == 3: create a new game with password — both the name and
//	  password fields follow, in that order.
func handleMenuSelect10(_ context.Context, s *serverstate.State, c *client.Client, flag uint32, payload []byte) error {
	_, itemID, ok := menuSelectPayload(payload)
	if !ok {
		return fmt.Errorf("menu select 10: payload too short: %w", ErrProtocolViolation)
	}

	const nameFieldSize = 0x10

	switch flag & 0x03 {
	case 0, 1:
		dst := s.FindLobbyByID(itemID)
		if dst == nil || !dst.IsGame() {
			return c.Send(constants.CommandGameJoin, 0, []byte{0xFF})
		}
		return moveAndAnnounce(s, c, dst)

	case 2, 3:
		nameField := payload[8:]
		if len(nameField) > nameFieldSize {
			nameField = nameField[:nameFieldSize]
		}
		name := decodeText(c.Version, nameField)

		game := lobby.NewLobby(s.NextGameID(), name, constants.GameMaxClients, lobby.FlagIsGame)
		game.Version = c.Version
		s.AddLobby(game)
		return moveAndAnnounce(s, c, game)

	default:
		return fmt.Errorf("menu select 10: unreachable flag variant %#x: %w", flag&0x03, ErrProtocolViolation)
	}
}

// handleGameLeave moves a client out of its current game back into the
// first available public lobby (spec.md §4I command 0x66: client
// requests to leave the game it's in).
func handleGameLeave(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, _ []byte) error {
	return leaveCurrentContainer(s, c)
}

// handleLobbyLeave mirrors handleGameLeave for command 0x67, used both
// when a client leaves a persistent lobby for another and as the
// leave-notification id shared with CommandLobbyMemberAdd (spec.md §4I:
// these share one opcode, differentiated by direction and context).
func handleLobbyLeave(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, _ []byte) error {
	return leaveCurrentContainer(s, c)
}

func leaveCurrentContainer(s *serverstate.State, c *client.Client) error {
	src := s.FindLobbyByID(c.LobbyID)
	if src == nil {
		return nil
	}
	clientID := uint8(c.LobbyClientID)
	if err := src.Remove(c); err != nil {
		return fmt.Errorf("lobby leave: %w", err)
	}
	src.Broadcast(nil, func(target *client.Client) error {
		return target.Send(constants.CommandLobbyLeave, uint32(clientID), []byte{clientID})
	})

	if !src.IsGame() {
		return nil
	}
	if err := s.AddClientToAvailableLobby(c); err != nil {
		c.Log.Warn("no lobby available for client leaving a game", "error", err)
		return nil
	}
	dst := s.FindLobbyByID(c.LobbyID)
	return c.Send(constants.CommandLobbyJoin, uint32(dst.CountClients()), []byte{uint8(c.LobbyClientID), uint8(dst.LeaderID)})
}

// handleLobbyChat68 relays the lobby-scoped "word select"/info-board
// command verbatim to every other occupant (spec.md §4I command 0x68):
// its payload format is player-data, not something the server
// interprets, so it's forwarded unchanged rather than decoded.
func handleLobbyChat68(_ context.Context, s *serverstate.State, c *client.Client, flag uint32, payload []byte) error {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil {
		return nil
	}
	l.Broadcast(c, func(target *client.Client) error {
		return target.Send(constants.CommandLobbyChat68, flag, payload)
	})
	return nil
}

// handleLeaderChange implements command 0x69: only the current leader
// may transfer leadership, to a target named by its lobby-client slot in
// payload[0] (spec.md §4I, grounded on original_source's
// C_SetGameLeader requiring the sender be leader).
func handleLeaderChange(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("leader change: payload too short: %w", ErrProtocolViolation)
	}
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil {
		return fmt.Errorf("leader change: client has no current lobby: %w", ErrProtocolViolation)
	}
	if l.LeaderID != c.LobbyClientID {
		return nil
	}

	target := int(payload[0])
	if target < 0 || target >= l.MaxClients {
		return fmt.Errorf("leader change: target slot %d out of range: %w", target, ErrProtocolViolation)
	}
	if err := l.SetLeader(target); err != nil {
		return fmt.Errorf("leader change: %w", err)
	}

	l.Broadcast(nil, func(c *client.Client) error {
		return c.Send(constants.CommandLeaderChange, uint32(target), nil)
	})
	return nil
}

// handleGameNameChange implements command 0x83: only the leader may
// rename the game, and the new name is broadcast to every occupant
// (spec.md §4I, grounded on original_source's C_SetGameName).
func handleGameNameChange(_ context.Context, s *serverstate.State, c *client.Client, _ uint32, payload []byte) error {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil || !l.IsGame() {
		return fmt.Errorf("game name change: client has no current game: %w", ErrProtocolViolation)
	}
	if l.LeaderID != c.LobbyClientID {
		return nil
	}

	name := decodeText(c.Version, payload)
	l.SetName(name)

	l.Broadcast(nil, func(target *client.Client) error {
		return target.Send(constants.CommandGameNameChange, 0, encodeText(target.Version, name))
	})
	return nil
}

// handleArrowList relays a client's chosen lobby symbol/color ("arrow")
// to the rest of its lobby (spec.md §4I command 0x84), forwarded as-is
// since the arrow id space is purely client-side presentation.
func handleArrowList(_ context.Context, s *serverstate.State, c *client.Client, flag uint32, payload []byte) error {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil {
		return nil
	}
	l.Broadcast(c, func(target *client.Client) error {
		return target.Send(constants.CommandLobbyArrowList, flag, payload)
	})
	return nil
}
