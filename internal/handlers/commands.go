package handlers

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/lobby"
	"github.com/openpso/server/internal/model"
	"github.com/openpso/server/internal/serverstate"
	"github.com/openpso/server/internal/subcommand"
)

// RegisterDefaultChatCommands registers the representative commands
// spec.md §4I names: $ann, $cheat, $warp, $item, $kick/$ban/$silence,
// $edit.
func RegisterDefaultChatCommands(r *ChatRegistry) {
	r.Register(ChatCommand{
		Name:          "ann",
		Preconditions: []Precondition{RequiresPrivilege(constants.PrivAnnounce)},
		Run:           chatAnnounce,
	})
	r.Register(ChatCommand{
		Name:          "cheat",
		Preconditions: []Precondition{RequiresInGame, RequiresLeader},
		Run:           chatToggleCheats,
	})
	r.Register(ChatCommand{
		Name:          "warp",
		Preconditions: []Precondition{RequiresInGame, RequiresCheatsEnabled},
		Run:           chatWarp,
	})
	r.Register(ChatCommand{
		Name:          "item",
		Preconditions: []Precondition{RequiresInGame, RequiresCheatsEnabled},
		Run:           chatSeedItem,
	})
	r.Register(ChatCommand{
		Name:          "kick",
		Preconditions: []Precondition{RequiresPrivilege(constants.PrivKick)},
		Run:           chatKick,
	})
	r.Register(ChatCommand{
		Name:          "ban",
		Preconditions: []Precondition{RequiresPrivilege(constants.PrivBan)},
		Run:           chatBan,
	})
	r.Register(ChatCommand{
		Name:          "silence",
		Preconditions: []Precondition{RequiresPrivilege(constants.PrivSilence)},
		Run:           chatSilence,
	})
	r.Register(ChatCommand{
		Name:          "edit",
		Preconditions: []Precondition{RequiresVersion(constants.VersionBB), notInGame},
		Run:           chatEdit,
	})
}

// notInGame is $edit's "not-in-game" gate, the inverse of RequiresInGame:
// stat edits only apply while the player is in a lobby, since applying
// them mid-game would desync from the game's already-broadcast player
// state (spec.md §4I: "$edit <stat> <value> (BB only, not-in-game)").
func notInGame(s *serverstate.State, c *client.Client) (string, bool) {
	if l := s.FindLobbyByID(c.LobbyID); l != nil && l.IsGame() {
		return redMessage("This command can't be used inside a game."), false
	}
	return "", true
}

// chatAnnounce composes the announcement text and broadcasts it to every
// connected client (spec.md §4I: "$ann <text> ... broadcasts to whole
// server"). A client that hasn't joined any lobby yet (mid-handshake, so
// unreachable from any lobby's broadcast) still gets its own
// announcement delivered directly.
func chatAnnounce(s *serverstate.State, c *client.Client, args string) (string, error) {
	if strings.TrimSpace(args) == "" {
		return "Usage: $ann <text>", nil
	}
	text := fmt.Sprintf("[Announcement] %s", args)

	delivered := false
	s.BroadcastAll(func(target *client.Client) error {
		if target == c {
			delivered = true
		}
		return target.Send(constants.CommandChat, 0, encodeText(target.Version, text))
	})
	if !delivered {
		if err := c.Send(constants.CommandChat, 0, encodeText(c.Version, text)); err != nil {
			return "", fmt.Errorf("chat $ann: %w", err)
		}
	}
	return "", nil
}

func chatToggleCheats(s *serverstate.State, c *client.Client, _ string) (string, error) {
	l := s.FindLobbyByID(c.LobbyID)
	if l == nil {
		return "", fmt.Errorf("chat $cheat: client has no current game: %w", ErrProtocolViolation)
	}
	enabled := l.Flags&lobby.FlagCheatsEnabled == 0
	l.SetCheatsEnabled(enabled)
	if enabled {
		return "Cheats are now enabled.", nil
	}
	return "Cheats are now disabled.", nil
}

// chatWarp sends the invoking client a warp subcommand moving it to the
// given area (spec.md §4I's $warp scenario), rather than merely validating
// its argument and reporting success.
func chatWarp(_ *serverstate.State, c *client.Client, args string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return "Usage: $warp <area number>", nil
	}
	if n < 0 || n > 0xFF {
		return "Area number out of range.", nil
	}

	body := make([]byte, 2)
	body[0] = byte(c.LobbyClientID)
	body[1] = byte(n)
	if err := c.Send(constants.CommandSubBroadcast60, 0, subcommand.Encode(subcommand.SubWarp, body)); err != nil {
		return "", fmt.Errorf("chat $warp: %w", err)
	}
	return fmt.Sprintf("Warping to area %d.", n), nil
}

// chatSeedItem seeds the next enemy/box drop in the client's current game
// (spec.md §8 scenario 1: "$item <hex item code>" copies the hex string's
// bytes, in order, into data1[0..3]).
func chatSeedItem(s *serverstate.State, c *client.Client, args string) (string, error) {
	args = strings.TrimSpace(args)
	raw, err := hex.DecodeString(strings.TrimPrefix(args, "0x"))
	if err != nil || len(raw) == 0 {
		return "Usage: $item <hex item code>", nil
	}

	l := s.FindLobbyByID(c.LobbyID)
	if l == nil {
		return "", fmt.Errorf("chat $item: client has no current game: %w", ErrProtocolViolation)
	}

	var data model.ItemData
	copy(data.Data1[:], raw)
	data.ItemID = l.GenerateGameItemID()

	l.NextDropItem = model.DroppedItem{Data: data}
	return "Next drop chosen.", nil
}

func findTargetByName(s *serverstate.State, name string) *client.Client {
	for _, l := range s.AllLobbies() {
		for _, c := range l.Clients() {
			if c.Player != nil && bbNameMatches(c.Player, name) {
				return c
			}
		}
	}
	return nil
}

// bbNameMatches compares a player's display name against name using the
// raw UTF-16 code units, avoiding a dependency on internal/textenc for
// what's fundamentally an exact-match lookup (the chat command's operator
// types the exact name shown in-game).
func bbNameMatches(p *model.Player, name string) bool {
	runes := []rune(name)
	for i, r := range runes {
		if i >= len(p.Disp.Name) || uint16(r) != p.Disp.Name[i] {
			return false
		}
	}
	return len(runes) > 0 && (len(runes) >= len(p.Disp.Name) || p.Disp.Name[len(runes)] == 0)
}

func chatKick(s *serverstate.State, _ *client.Client, args string) (string, error) {
	name := strings.TrimSpace(args)
	target := findTargetByName(s, name)
	if target == nil {
		return fmt.Sprintf("No player named %q found.", name), nil
	}
	target.MarkForDisconnect()
	return fmt.Sprintf("Kicked %s.", name), nil
}

func chatBan(s *serverstate.State, _ *client.Client, args string) (string, error) {
	name := strings.TrimSpace(args)
	target := findTargetByName(s, name)
	if target == nil {
		return fmt.Sprintf("No player named %q found.", name), nil
	}
	if target.License != nil {
		// A permanent ban: far-future ban-until, matching original_source's
		// convention of an effectively-unbounded ban_end_time rather than a
		// sentinel value.
		const permanentBanMicros = int64(1) << 62
		if err := s.Licenses.BanUntil(target.License.SerialNumber, permanentBanMicros); err != nil {
			return "", fmt.Errorf("chat $ban: %w", err)
		}
	}
	target.MarkForDisconnect()
	return fmt.Sprintf("Banned %s.", name), nil
}

func chatSilence(s *serverstate.State, _ *client.Client, args string) (string, error) {
	name := strings.TrimSpace(args)
	target := findTargetByName(s, name)
	if target == nil {
		return fmt.Sprintf("No player named %q found.", name), nil
	}
	target.Privileges &^= constants.PrivAnnounce
	return fmt.Sprintf("Silenced %s.", name), nil
}

// chatEdit mutates the caller's stat and, for the stats carried by the
// 6x30 level-up sub-message (original_source's G_LevelUp_6x30: client_id,
// atp, mst, evp, hp, dfp, ata), broadcasts the new values into the
// caller's current lobby so every other client's display stays in sync.
// lck has no wire representation in that sub-message, so it changes
// locally only.
func chatEdit(s *serverstate.State, c *client.Client, args string) (string, error) {
	stat, valueStr, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok {
		return "Usage: $edit <stat> <value>", nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 || value > 0xFFFF {
		return "Value must be a number between 0 and 65535.", nil
	}
	if c.Player == nil {
		return "", fmt.Errorf("chat $edit: client has no player loaded: %w", ErrProtocolViolation)
	}

	v := uint16(value)
	broadcastable := true
	switch strings.ToLower(stat) {
	case "atp":
		c.Player.Disp.Stats.ATP = v
	case "mst":
		c.Player.Disp.Stats.MST = v
	case "evp":
		c.Player.Disp.Stats.EVP = v
	case "hp":
		c.Player.Disp.Stats.HP = v
	case "dfp":
		c.Player.Disp.Stats.DFP = v
	case "ata":
		c.Player.Disp.Stats.ATA = v
	case "lck":
		c.Player.Disp.Stats.LCK = v
		broadcastable = false
	default:
		return fmt.Sprintf("Unknown stat %q.", stat), nil
	}

	if broadcastable {
		if l := s.FindLobbyByID(c.LobbyID); l != nil {
			body := make([]byte, 16)
			binary.LittleEndian.PutUint16(body[0:2], uint16(c.LobbyClientID))
			binary.LittleEndian.PutUint16(body[2:4], c.Player.Disp.Stats.ATP)
			binary.LittleEndian.PutUint16(body[4:6], c.Player.Disp.Stats.MST)
			binary.LittleEndian.PutUint16(body[6:8], c.Player.Disp.Stats.EVP)
			binary.LittleEndian.PutUint16(body[8:10], c.Player.Disp.Stats.HP)
			binary.LittleEndian.PutUint16(body[10:12], c.Player.Disp.Stats.DFP)
			binary.LittleEndian.PutUint16(body[12:14], c.Player.Disp.Stats.ATA)
			msg := subcommand.Encode(subcommand.SubLevelUp, body)
			l.Broadcast(nil, func(target *client.Client) error {
				return target.Send(constants.CommandSubBroadcast60, 0, msg)
			})
		}
	}
	return fmt.Sprintf("Set %s to %d.", stat, value), nil
}
