package model

import (
	"testing"

	"github.com/openpso/server/internal/constants"
	"github.com/stretchr/testify/require"
)

func monomate(itemID uint32, count uint8) InventoryItem {
	var item InventoryItem
	item.Data.Data1[0] = 0x03
	item.Data.setStackCount(count)
	item.Data.ItemID = itemID
	return item
}

func TestInventoryAddMeseta(t *testing.T) {
	inv := NewInventory()
	item := newInventoryMeseta(500)

	require.NoError(t, inv.Add(item))
	require.Equal(t, uint32(500), inv.Meseta)
	require.Empty(t, inv.Items)
}

func newInventoryMeseta(amount uint32) InventoryItem {
	var item InventoryItem
	item.Data = newMesetaItem(amount)
	return item
}

func TestInventoryAddMesetaSaturates(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(newInventoryMeseta(900000)))
	require.NoError(t, inv.Add(newInventoryMeseta(900000)))
	require.Equal(t, uint32(MesetaCap), inv.Meseta)
}

func TestInventoryAddStacksCombineItems(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(monomate(1, 3)))
	require.NoError(t, inv.Add(monomate(2, 3)))
	require.Len(t, inv.Items, 1)
	require.Equal(t, uint8(6), inv.Items[0].Data.StackCount())
}

func TestInventoryAddClampsStackToMax(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(monomate(1, 8)))
	require.NoError(t, inv.Add(monomate(2, 8)))
	require.Equal(t, uint8(10), inv.Items[0].Data.StackCount())
}

func TestInventoryAddFailsWhenFull(t *testing.T) {
	inv := NewInventory()
	for i := 0; i < InventoryMaxSlots; i++ {
		var item InventoryItem
		item.Data.Data1[0] = 0x01
		item.Data.ItemID = uint32(i + 1)
		require.NoError(t, inv.Add(item))
	}

	var extra InventoryItem
	extra.Data.Data1[0] = 0x02
	extra.Data.ItemID = 999
	require.ErrorIs(t, inv.Add(extra), ErrInventoryFull)
}

func TestInventoryRemoveWholeStack(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(monomate(1, 5)))

	removed, err := inv.Remove(1, 0)
	require.NoError(t, err)
	require.Equal(t, uint8(5), removed.StackCount())
	require.Empty(t, inv.Items)
}

func TestInventoryRemoveSplitsStack(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(monomate(1, 5)))

	split, err := inv.Remove(1, 2)
	require.NoError(t, err)
	require.Equal(t, uint8(2), split.StackCount())
	require.Equal(t, uint32(constants.ItemIDMesetaToken), split.ItemID)
	require.Equal(t, uint8(3), inv.Items[0].Data.StackCount())
}

func TestInventoryRemoveMeseta(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(newInventoryMeseta(100)))

	item, err := inv.Remove(constants.ItemIDMesetaToken, 40)
	require.NoError(t, err)
	require.Equal(t, uint32(40), item.Data2Uint32())
	require.Equal(t, uint32(60), inv.Meseta)
}

func TestInventoryRemoveInsufficientMeseta(t *testing.T) {
	inv := NewInventory()
	_, err := inv.Remove(constants.ItemIDMesetaToken, 10)
	require.ErrorIs(t, err, ErrInsufficientMeseta)
}

func TestInventoryRemoveNotFound(t *testing.T) {
	inv := NewInventory()
	_, err := inv.Remove(42, 1)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestInventoryUseMaterial(t *testing.T) {
	inv := NewInventory()
	inv.UseMaterial(MaterialHP)
	inv.UseMaterial(MaterialHP)
	inv.UseMaterial(MaterialTP)
	inv.UseMaterial(MaterialOther)

	require.Equal(t, uint8(2), inv.HPMaterialsUsed)
	require.Equal(t, uint8(1), inv.TPMaterialsUsed)
}

func TestInventoryItemToBankItemAndBack(t *testing.T) {
	item := monomate(1, 7)
	bankItem := item.ToBankItem()
	require.Equal(t, uint16(7), bankItem.Amount)

	back := bankItem.ToInventoryItem()
	require.Equal(t, item.Data, back.Data)
}

func TestPlayerBankAddRemoveAndAssignIDs(t *testing.T) {
	bank := NewPlayerBank()
	require.NoError(t, bank.Add(BankItem{Data: monomate(1, 4).Data, Amount: 4}))
	require.NoError(t, bank.Add(BankItem{Data: monomate(2, 3).Data, Amount: 3}))
	require.Len(t, bank.Items, 1)
	require.Equal(t, uint8(7), bank.Items[0].Data.StackCount())

	bank.AssignBankIDs()
	require.Equal(t, uint32(constants.ItemIDBankBase), bank.Items[0].Data.ItemID)
}

func TestPlayerBankFullFails(t *testing.T) {
	bank := NewPlayerBank()
	for i := 0; i < BankMaxSlots; i++ {
		var d ItemData
		d.Data1[0] = 0x01
		d.ItemID = uint32(i + 1)
		require.NoError(t, bank.Add(BankItem{Data: d, Amount: 1}))
	}

	var extra ItemData
	extra.Data1[0] = 0x02
	extra.ItemID = 999
	require.ErrorIs(t, bank.Add(BankItem{Data: extra, Amount: 1}), ErrBankFull)
}
