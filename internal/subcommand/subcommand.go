// Package subcommand implements the sub-message format carried inside
// PSO's 60/62/6C/6D/C9/CB commands (spec.md §4I "Subcommand relay" and
// the GLOSSARY's "Subcommand" entry): a stream of self-describing
// messages, each led by a one-byte subcommand ID and a one-byte size in
// 4-byte words, that the server relays to one or many recipients while
// inspecting a small whitelist subcommand-by-subcommand for server-side
// actions. Layout grounded on original_source/src/CommandFormats.hh's
// `G_*_6xNN` struct family, every one of which opens with the same
// `uint8_t subcommand; uint8_t size;` pair.
package subcommand

import "fmt"

// Subcommand IDs the server inspects, named the way
// original_source/src/CommandFormats.hh names its G_*_6xNN structs.
const (
	// SubSendGuildCard (6x06) carries a player's guild card, including its
	// serial number (located by GuildCardSerialOffset).
	SubSendGuildCard = 0x06

	// SubDropItem (6x5F) is the server's authoritative "this item landed"
	// message, sent in place of relaying a client's drop request whenever
	// the server holds drop authority (BB).
	SubDropItem = 0x5F

	// SubEnemyDropItemRequest (6x60) is a client asking the server to
	// decide what an enemy or box just dropped. On BB the server is the
	// drop authority (spec.md §4I), so this is intercepted rather than
	// relayed as-is.
	SubEnemyDropItemRequest = 0x60

	// SubWarp (6x94) moves the receiving client to a different floor/area.
	SubWarp = 0x94

	// SubLevelUp (6x30) carries a player's updated core stats to the rest
	// of its lobby/game.
	SubLevelUp = 0x30
)

// Message is one parsed sub-message: Raw aliases the subcommand's bytes
// within the enclosing command payload, header included.
type Message struct {
	ID  byte
	Raw []byte
}

// Iterate splits payload into its constituent sub-messages. Each
// message's second byte is its length in 4-byte words, header included;
// a zero-length message (no client legitimately sends one) is rejected
// rather than looping forever on a malformed payload.
func Iterate(payload []byte) ([]Message, error) {
	var out []Message
	for len(payload) > 0 {
		if len(payload) < 2 {
			return nil, fmt.Errorf("subcommand: %d trailing byte(s), need at least 2", len(payload))
		}
		words := int(payload[1])
		if words == 0 {
			return nil, fmt.Errorf("subcommand %#02x: zero-length sub-message", payload[0])
		}
		size := words * 4
		if size > len(payload) {
			return nil, fmt.Errorf("subcommand %#02x: declared size %d exceeds remaining payload %d", payload[0], size, len(payload))
		}
		out = append(out, Message{ID: payload[0], Raw: payload[:size]})
		payload = payload[size:]
	}
	return out, nil
}

// Encode packs a single sub-message from its id and body (the bytes
// following the size byte), padding with zero bytes up to the next
// 4-byte boundary and writing the resulting word count into byte 1.
func Encode(id byte, body []byte) []byte {
	total := 2 + len(body)
	words := total / 4
	if total%4 != 0 {
		words++
	}
	out := make([]byte, words*4)
	out[0] = id
	out[1] = byte(words)
	copy(out[2:], body)
	return out
}

// GuildCardSerialOffset returns the byte offset of the guild_card_number
// field within a SubSendGuildCard message for the given BB-ness, or -1 if
// the message is too short to contain one. DC/PC/GC/Ep3 carry an extra
// 4-byte player_tag field BB does not (original_source's
// G_SendGuildCard_DC_PC_V3 vs G_SendGuildCard_BB_6x06).
func GuildCardSerialOffset(msg Message, isBB bool) int {
	offset := 4
	if !isBB {
		offset = 8
	}
	if len(msg.Raw) < offset+4 {
		return -1
	}
	return offset
}
