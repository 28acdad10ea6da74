package model

// DroppedItem is an item lying on a game floor, awaiting pickup via a
// subcommand request. The server assigns ItemID from the game-wide
// allocator (internal/lobby) rather than the per-client allocator used for
// items a player already owns (spec.md §4F).
type DroppedItem struct {
	Data     ItemData
	Area     uint8
	X        float32
	Z        float32
	FromEnemy bool
}
