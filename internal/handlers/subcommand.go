package handlers

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/lobby"
	"github.com/openpso/server/internal/model"
	"github.com/openpso/server/internal/serverstate"
	"github.com/openpso/server/internal/subcommand"
)

// RegisterSubcommandHandlers wires the 60/62/6C/6D/C9/CB subcommand
// relay family into r (spec.md §4I "Subcommand relay"): 60/6C/C9
// broadcast every sub-message to the rest of the sender's lobby, while
// 62/6D/CB deliver to exactly one recipient, named by the command's flag
// word as that recipient's lobby_client_id. Both paths run the payload
// through interceptWhitelist before relaying, the hook that lets the
// server act as BB's item-drop authority instead of trusting the
// client's own drop roll.
func RegisterSubcommandHandlers(r *Registry) {
	r.Register(constants.CommandSubBroadcast60, subBroadcastHandler(constants.CommandSubBroadcast60), AllVersions()...)
	r.Register(constants.CommandSubBroadcast6C, subBroadcastHandler(constants.CommandSubBroadcast6C), AllVersions()...)
	r.Register(constants.CommandSubBroadcastC9, subBroadcastHandler(constants.CommandSubBroadcastC9), AllVersions()...)
	r.Register(constants.CommandSubTarget62, subTargetHandler(constants.CommandSubTarget62), AllVersions()...)
	r.Register(constants.CommandSubTarget6D, subTargetHandler(constants.CommandSubTarget6D), AllVersions()...)
	r.Register(constants.CommandSubTargetCB, subTargetHandler(constants.CommandSubTargetCB), AllVersions()...)
}

func subBroadcastHandler(command uint16) Func {
	return func(_ context.Context, s *serverstate.State, c *client.Client, flag uint32, payload []byte) error {
		l := s.FindLobbyByID(c.LobbyID)
		if l == nil {
			return fmt.Errorf("subcommand %#02x: client has no current lobby: %w", command, ErrProtocolViolation)
		}

		relayed, err := interceptWhitelist(l, c, payload)
		if err != nil {
			return fmt.Errorf("subcommand %#02x: %w", command, err)
		}

		l.Broadcast(c, func(target *client.Client) error {
			return target.Send(command, flag, relayed)
		})
		return nil
	}
}

func subTargetHandler(command uint16) Func {
	return func(_ context.Context, s *serverstate.State, c *client.Client, flag uint32, payload []byte) error {
		l := s.FindLobbyByID(c.LobbyID)
		if l == nil {
			return fmt.Errorf("subcommand %#02x: client has no current lobby: %w", command, ErrProtocolViolation)
		}

		relayed, err := interceptWhitelist(l, c, payload)
		if err != nil {
			return fmt.Errorf("subcommand %#02x: %w", command, err)
		}

		target := findLobbySlot(l, int(flag))
		if target == nil || target == c {
			return nil
		}
		return target.Send(command, uint32(c.LobbyClientID), relayed)
	}
}

func findLobbySlot(l *lobby.Lobby, slot int) *client.Client {
	for _, c := range l.Clients() {
		if c.LobbyClientID == slot {
			return c
		}
	}
	return nil
}

// interceptWhitelist runs every sub-message in payload through the
// server-side action whitelist, substituting the server's own message in
// place of any message it intercepts, and returns the (possibly
// rewritten) payload ready to relay. Messages it doesn't recognize pass
// through unchanged.
func interceptWhitelist(l *lobby.Lobby, c *client.Client, payload []byte) ([]byte, error) {
	messages, err := subcommand.Iterate(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	out := make([]byte, 0, len(payload))
	for _, msg := range messages {
		if msg.ID == subcommand.SubEnemyDropItemRequest {
			if replacement, ok := interceptEnemyDropRequest(l, c, msg); ok {
				out = append(out, replacement...)
				continue
			}
		}
		out = append(out, msg.Raw...)
	}
	return out, nil
}

// interceptEnemyDropRequest is the item-drop half of the whitelist
// (spec.md §4I: "item drops for BB where the server is the drop
// authority"). It only fires for BB clients inside a game that has a
// seeded next_drop_item (set by the $item chat command); everyone else's
// drop requests relay unmodified, since the server isn't the drop
// authority for them.
func interceptEnemyDropRequest(l *lobby.Lobby, c *client.Client, msg subcommand.Message) ([]byte, bool) {
	if c.Version != constants.VersionBB || !l.IsGame() {
		return nil, false
	}
	if l.NextDropItem.Data.ItemID == 0 && l.NextDropItem.Data.PrimaryIdentifier() == 0 {
		return nil, false
	}

	var area uint8
	var x, z float32
	if len(msg.Raw) >= 16 {
		area = msg.Raw[4]
		x = math.Float32frombits(binary.LittleEndian.Uint32(msg.Raw[8:12]))
		z = math.Float32frombits(binary.LittleEndian.Uint32(msg.Raw[12:16]))
	}

	item := l.NextDropItem.Data
	item.ItemID = l.GenerateGameItemID()
	l.NextDropItem = model.DroppedItem{}

	// Mirrors original_source's G_DropItem_PC_V3_BB_6x5F: unused(2),
	// area(1), from_enemy(1), request_id(2), x(4), z(4), unused(4),
	// then the 20-byte item record.
	body := make([]byte, 2+1+1+2+4+4+4+20)
	body[2] = area
	binary.LittleEndian.PutUint32(body[6:10], math.Float32bits(x))
	binary.LittleEndian.PutUint32(body[10:14], math.Float32bits(z))
	copy(body[18:], item.Bytes())
	return subcommand.Encode(subcommand.SubDropItem, body), true
}
