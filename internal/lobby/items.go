package lobby

import (
	"fmt"

	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/model"
)

// GenerateItemID allocates the next item id for clientID's own sequence
// (spec.md §4F: "each client slot owns its own next-item-id counter,
// client_id*0x00200000 + client_base + n"), grounded on original_source's
// Lobby::generate_item_id, which partitions the id space per client to
// avoid cross-client collisions without coordination.
func (l *Lobby) GenerateItemID(clientID int) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.nextItemID[clientID]
	l.nextItemID[clientID]++
	return constants.ItemIDClientBase + uint32(clientID)*constants.ItemIDClientSpan + n
}

// GenerateGameItemID allocates the next id from the game-wide pool used
// for enemy drops and quest-spawned items that aren't owned by any one
// client (spec.md §4F).
func (l *Lobby) GenerateGameItemID() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextGameItemID
	l.nextGameItemID++
	return id
}

// AssignItemIDsForPlayer rewrites every inventory item's id for clientID
// to fall within that client's allocated range (bank items are not
// touched; PlayerBank.AssignBankIDs covers those), used when a
// player joins a game carrying items minted under a different
// allocator (spec.md §4F, grounded on original_source's
// assign_item_ids_for_player).
func (l *Lobby) AssignItemIDsForPlayer(clientID int, inv *model.Inventory) {
	for i := range inv.Items {
		inv.Items[i].Data.ItemID = l.GenerateItemID(clientID)
	}
}

// AddItem places a dropped item on the floor, keyed by its item id.
func (l *Lobby) AddItem(item model.DroppedItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.floorItems[item.Data.ItemID] = item
}

// RemoveItem takes a dropped item off the floor (a player picked it up).
func (l *Lobby) RemoveItem(itemID uint32) (model.DroppedItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.floorItems[itemID]
	if !ok {
		return model.DroppedItem{}, fmt.Errorf("lobby %d: item %#x: %w", l.ID, itemID, ErrItemNotFound)
	}
	delete(l.floorItems, itemID)
	return item, nil
}

// FindItem looks up a floor item without removing it.
func (l *Lobby) FindItem(itemID uint32) (model.DroppedItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	item, ok := l.floorItems[itemID]
	return item, ok
}

// FloorItems returns a snapshot of every item currently on the floor.
func (l *Lobby) FloorItems() []model.DroppedItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.DroppedItem, 0, len(l.floorItems))
	for _, item := range l.floorItems {
		out = append(out, item)
	}
	return out
}

// SetLeader assigns leadership to the occupant in the given slot,
// returning ErrClientMismatch if that slot is empty (spec.md §4I command
// 0x69: only an occupied slot can become leader).
func (l *Lobby) SetLeader(slot int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slot < 0 || slot >= l.MaxClients || l.clients[slot] == nil {
		return fmt.Errorf("lobby %d: slot %d: %w", l.ID, slot, ErrClientMismatch)
	}
	l.LeaderID = slot
	return nil
}

// SetName renames the lobby or game (spec.md §4I command 0x83).
func (l *Lobby) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Name = name
}

// SetCheatsEnabled flips the game's cheat-mode flag. Disabling cheats
// clears every client's cheat flags and resets the next-drop-item
// preview, matching original_source's toggle_cheat_mode behavior of
// scrubbing cheat state the instant it's turned off rather than leaving
// stale state for clients that re-enable it later.
func (l *Lobby) SetCheatsEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if enabled {
		l.Flags |= FlagCheatsEnabled
		return
	}
	l.Flags &^= FlagCheatsEnabled
	l.NextDropItem = model.DroppedItem{}
	for _, c := range l.clients {
		if c == nil {
			continue
		}
		c.CheatInfiniteHP = false
		c.CheatInfiniteTP = false
	}
}
