// Package model implements the player-facing data model: items, inventory
// and bank containers, and the cross-version player display/save formats
// (spec.md §4D).
package model

import "encoding/binary"

// MesetaIdentifier is the primary identifier value reserved for meseta
// "items" passed through inventory/bank add/remove (spec.md §4D: "the
// meseta sentinel"). Synthetic meseta items carry Data1[0] == 0x04 with
// the rest of Data1 zeroed, which PrimaryIdentifier packs to 0x040000.
const MesetaIdentifier = 0x040000

// MesetaCap is the saturating ceiling both a player's and a bank's meseta
// counter clamp to.
const MesetaCap = 999999

// ItemData is the 20-byte raw item record carried on the wire and in save
// files: a 12-byte type-and-parameter block, a 4-byte item ID, and a
// 4-byte secondary parameter block (grounded on original_source's
// ItemData: a 12-byte item_data1 union, a uint32 item_id, a 4-byte
// item_data2 union).
type ItemData struct {
	Data1  [12]byte
	ItemID uint32
	Data2  [4]byte
}

// PrimaryIdentifier returns the item's type-identifying value: the upper
// three bytes of Data1, big-endian-packed into a uint32 (spec.md §4D:
// "the item's 'primary identifier' (upper 3 bytes of data1)").
func (d ItemData) PrimaryIdentifier() uint32 {
	return uint32(d.Data1[0])<<16 | uint32(d.Data1[1])<<8 | uint32(d.Data1[2])
}

// StackCount returns the current stack size for a stackable item, stored
// at Data1[5] in the original wire format.
func (d ItemData) StackCount() uint8 { return d.Data1[5] }

func (d *ItemData) setStackCount(n uint8) { d.Data1[5] = n }

// Bytes serializes the record to its 20-byte wire form: Data1, then
// ItemID little-endian, then Data2 — the layout ItemDataFromBytes
// reverses.
func (d ItemData) Bytes() []byte {
	out := make([]byte, 20)
	copy(out[0:12], d.Data1[:])
	binary.LittleEndian.PutUint32(out[12:16], d.ItemID)
	copy(out[16:20], d.Data2[:])
	return out
}

// ItemDataFromBytes parses a 20-byte wire-form item record. b must be at
// least 20 bytes; extra trailing bytes are ignored.
func ItemDataFromBytes(b []byte) ItemData {
	var d ItemData
	copy(d.Data1[:], b[0:12])
	d.ItemID = binary.LittleEndian.Uint32(b[12:16])
	copy(d.Data2[:], b[16:20])
	return d
}

// Data2Uint32 reads Data2 as a little-endian uint32 (used for the meseta
// amount carried by a synthetic meseta "item").
func (d ItemData) Data2Uint32() uint32 { return binary.LittleEndian.Uint32(d.Data2[:]) }

func (d *ItemData) setData2Uint32(v uint32) { binary.LittleEndian.PutUint32(d.Data2[:], v) }

// newMesetaItem builds a synthetic ItemData representing a withdrawn
// meseta amount, the shape Remove returns when item_id == MesetaToken.
func newMesetaItem(amount uint32) ItemData {
	var d ItemData
	d.Data1[0] = 0x04
	d.setData2Uint32(amount)
	return d
}

// StackableMax is the table of per-item stack caps for "combine" items
// (Mates, Fluids, disks, grinders, and so on), keyed by PrimaryIdentifier.
// Grounded on original_source's combine_item_to_max table.
var StackableMax = map[uint32]uint8{
	0x030000: 10, // Monomate
	0x030001: 10,
	0x030100: 10, // Dimate
	0x030101: 10,
	0x030200: 10, // Trimate
	0x030201: 10,
	0x030300: 10, // Monofluid
	0x030400: 10, // Difluid
	0x030500: 10, // Trifluid
	0x030600: 10, // Antidote
	0x030601: 10,
	0x030700: 10, // Antiparalysis
	0x030800: 10, // Sol Atomizer
	0x031000: 99, // Grinder
	0x031001: 99,
	0x031002: 99,
}

// IsStackable reports whether id is a "combine" item with a shared-stack
// table entry.
func IsStackable(id uint32) (max uint8, ok bool) {
	max, ok = StackableMax[id]
	return max, ok
}
