package model

import (
	"errors"
	"fmt"

	"github.com/openpso/server/internal/constants"
)

// ErrInventoryFull is returned by Inventory.Add when all 30 slots are
// already occupied and the item being added is not a stackable addition to
// an existing stack (spec.md §4D: "failing if 30 items are already held").
var ErrInventoryFull = errors.New("inventory: no free slot")

// ErrBankFull is the bank-container analogue of ErrInventoryFull.
var ErrBankFull = errors.New("bank: no free slot")

// ErrItemNotFound is returned by Inventory.Remove and PlayerBank.Remove
// when no slot holds item_id.
var ErrItemNotFound = errors.New("item not found")

// ErrInsufficientMeseta is returned by Remove when amount exceeds the held
// meseta total.
var ErrInsufficientMeseta = errors.New("insufficient meseta")

// InventoryMaxSlots is the fixed number of inventory slots every version
// agrees on (spec.md §4D; original_source's PlayerInventoryItem items[30]).
const InventoryMaxSlots = 30

// BankMaxSlots is the fixed number of bank slots (original_source's
// PlayerBankItem items[200]).
const BankMaxSlots = 200

// InventoryItem is one held item plus the flags the wire protocol tracks
// alongside it (equipped state, tech-disk learned flag, per-session
// game flags).
type InventoryItem struct {
	Data       ItemData
	EquipFlags uint16
	TechFlag   uint16
	GameFlags  uint32
}

// BankItem is one stored item plus the bank-specific amount/visibility
// flags (original_source's PlayerBankItem).
type BankItem struct {
	Data      ItemData
	Amount    uint16
	ShowFlags uint16
}

// ToBankItem converts a held item into its bank representation: the
// Amount field mirrors the stack count for combine items, or 1 otherwise.
func (item InventoryItem) ToBankItem() BankItem {
	amount := uint16(1)
	if _, ok := IsStackable(item.Data.PrimaryIdentifier()); ok {
		amount = uint16(item.Data.StackCount())
	}
	return BankItem{Data: item.Data, Amount: amount, ShowFlags: 1}
}

// ToInventoryItem converts a stored item back into held form.
func (bank BankItem) ToInventoryItem() InventoryItem {
	return InventoryItem{Data: bank.Data, EquipFlags: 0x0001, TechFlag: 0x0001}
}

// Inventory is a player's 30-slot held-item container plus the running
// meseta total and per-character material-usage counters.
type Inventory struct {
	Items           []InventoryItem
	Meseta          uint32
	HPMaterialsUsed uint8
	TPMaterialsUsed uint8
	Language        uint8
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{Items: make([]InventoryItem, 0, InventoryMaxSlots)}
}

// Add inserts item following spec.md §4D's add algorithm: meseta items
// increment the saturating meseta counter; stackable items join an
// existing same-identifier stack (clamped to the item's max) or start a
// new one; everything else takes a fresh slot, failing if the inventory
// already holds 30 items.
func (inv *Inventory) Add(item InventoryItem) error {
	pid := item.Data.PrimaryIdentifier()

	if pid == MesetaIdentifier {
		inv.Meseta += item.Data.Data2Uint32()
		if inv.Meseta > MesetaCap {
			inv.Meseta = MesetaCap
		}
		return nil
	}

	if max, ok := IsStackable(pid); ok {
		for i := range inv.Items {
			if inv.Items[i].Data.PrimaryIdentifier() == pid {
				sum := inv.Items[i].Data.StackCount() + item.Data.StackCount()
				if sum > max {
					sum = max
				}
				inv.Items[i].Data.setStackCount(sum)
				return nil
			}
		}
	}

	if len(inv.Items) >= InventoryMaxSlots {
		return fmt.Errorf("add item %#x: %w", pid, ErrInventoryFull)
	}
	inv.Items = append(inv.Items, item)
	return nil
}

// findIndex returns the slot index holding item_id, or -1.
func (inv *Inventory) findIndex(itemID uint32) int {
	for i := range inv.Items {
		if inv.Items[i].Data.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Remove implements spec.md §4D's remove algorithm. item_id ==
// constants.ItemIDMesetaToken removes meseta instead of a held item. For a
// stackable item with amount less than the held stack size, the stack is
// split and a fresh item (with ItemID == ItemIDMesetaToken, for the caller
// to assign a real ID to) is returned; amount == 0 removes the whole slot
// regardless of stack size.
func (inv *Inventory) Remove(itemID uint32, amount uint32) (ItemData, error) {
	if itemID == constants.ItemIDMesetaToken {
		if amount > inv.Meseta {
			return ItemData{}, fmt.Errorf("remove %d meseta: %w", amount, ErrInsufficientMeseta)
		}
		inv.Meseta -= amount
		return newMesetaItem(amount), nil
	}

	idx := inv.findIndex(itemID)
	if idx < 0 {
		return ItemData{}, fmt.Errorf("remove item %#x: %w", itemID, ErrItemNotFound)
	}
	held := &inv.Items[idx]

	if _, ok := IsStackable(held.Data.PrimaryIdentifier()); ok && amount != 0 && uint8(amount) < held.Data.StackCount() {
		split := held.Data
		split.setStackCount(uint8(amount))
		split.ItemID = constants.ItemIDMesetaToken
		held.Data.setStackCount(held.Data.StackCount() - uint8(amount))
		return split, nil
	}

	removed := held.Data
	inv.Items = append(inv.Items[:idx], inv.Items[idx+1:]...)
	return removed, nil
}

// UseMaterial applies a Hit/Power/Mind/etc. Material's permanent stat-cap
// increase bookkeeping. kind is HP or TP; anything else is a no-op since
// stat materials act on PlayerStats directly rather than a usage counter
// (supplemental to spec.md's base scope; grounded on original_source
// Player.cc's hp_materials_used/tp_materials_used fields).
func (inv *Inventory) UseMaterial(kind MaterialKind) {
	switch kind {
	case MaterialHP:
		inv.HPMaterialsUsed++
	case MaterialTP:
		inv.TPMaterialsUsed++
	}
}

// MaterialKind distinguishes the Hit Point / Technique Point materials
// from every other (stat-effecting, non-bookkept) material type.
type MaterialKind uint8

const (
	MaterialOther MaterialKind = iota
	MaterialHP
	MaterialTP
)

// PlayerBank is a player's 200-slot stored-item container plus its own
// independent meseta total (original_source's PlayerBank).
type PlayerBank struct {
	Items  []BankItem
	Meseta uint32
}

// NewPlayerBank returns an empty bank.
func NewPlayerBank() *PlayerBank {
	return &PlayerBank{Items: make([]BankItem, 0, BankMaxSlots)}
}

// Add mirrors Inventory.Add for the bank container.
func (bank *PlayerBank) Add(item BankItem) error {
	pid := item.Data.PrimaryIdentifier()

	if pid == MesetaIdentifier {
		bank.Meseta += item.Data.Data2Uint32()
		if bank.Meseta > MesetaCap {
			bank.Meseta = MesetaCap
		}
		return nil
	}

	if max, ok := IsStackable(pid); ok {
		for i := range bank.Items {
			if bank.Items[i].Data.PrimaryIdentifier() == pid {
				sum := bank.Items[i].Data.StackCount() + item.Data.StackCount()
				if sum > max {
					sum = max
				}
				bank.Items[i].Data.setStackCount(sum)
				bank.Items[i].Amount = uint16(sum)
				return nil
			}
		}
	}

	if len(bank.Items) >= BankMaxSlots {
		return fmt.Errorf("add item %#x: %w", pid, ErrBankFull)
	}
	bank.Items = append(bank.Items, item)
	return nil
}

func (bank *PlayerBank) findIndex(itemID uint32) int {
	for i := range bank.Items {
		if bank.Items[i].Data.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Remove mirrors Inventory.Remove for the bank container.
func (bank *PlayerBank) Remove(itemID uint32, amount uint32) (ItemData, error) {
	if itemID == constants.ItemIDMesetaToken {
		if amount > bank.Meseta {
			return ItemData{}, fmt.Errorf("remove %d meseta: %w", amount, ErrInsufficientMeseta)
		}
		bank.Meseta -= amount
		return newMesetaItem(amount), nil
	}

	idx := bank.findIndex(itemID)
	if idx < 0 {
		return ItemData{}, fmt.Errorf("remove item %#x: %w", itemID, ErrItemNotFound)
	}
	held := &bank.Items[idx]

	if _, ok := IsStackable(held.Data.PrimaryIdentifier()); ok && amount != 0 && uint8(amount) < held.Data.StackCount() {
		split := held.Data
		split.setStackCount(uint8(amount))
		split.ItemID = constants.ItemIDMesetaToken
		held.Data.setStackCount(held.Data.StackCount() - uint8(amount))
		held.Amount -= uint16(amount)
		return split, nil
	}

	removed := held.Data
	bank.Items = append(bank.Items[:idx], bank.Items[idx+1:]...)
	return removed, nil
}

// AssignBankIDs rewrites every bank item's ItemID to the
// constants.ItemIDBankBase + index family, so bank-withdraw/deposit
// subcommands carry a globally recognizable token (spec.md §4D: "Inventory
// item IDs are rewritten at bank-load time").
func (bank *PlayerBank) AssignBankIDs() {
	for i := range bank.Items {
		bank.Items[i].Data.ItemID = constants.ItemIDBankBase + uint32(i)
	}
}
