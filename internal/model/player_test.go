package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToPCGCSubstitutesMissingClasses(t *testing.T) {
	cases := []struct {
		bbClass   uint8
		wantClass uint8
	}{
		{ClassFOmar, ClassHUmar},
		{ClassRAmarl, ClassHUnewearl},
		{ClassHUcaseal, ClassRAcaseal},
		{ClassHUmar, ClassHUmar},
	}

	for _, c := range cases {
		bb := PlayerDispDataBB{CharClass: c.bbClass}
		pc := bb.ToPCGC(true, []byte("test"))
		require.Equal(t, c.wantClass, pc.CharClass)
		require.Equal(t, uint8(2), pc.Version)
	}
}

func TestToPCGCGCKeepsAllClasses(t *testing.T) {
	bb := PlayerDispDataBB{CharClass: ClassFOmar}
	gc := bb.ToPCGC(false, []byte("test"))
	require.Equal(t, ClassFOmar, gc.CharClass)
}

func TestToPCGCNameCopied(t *testing.T) {
	bb := PlayerDispDataBB{}
	pc := bb.ToPCGC(false, []byte("Hero"))
	require.Equal(t, byte('H'), pc.Name[0])
	require.Equal(t, byte(0), pc.Name[4])
}

func TestPlayerSaveLoadRoundTrip(t *testing.T) {
	p := NewPlayer()
	p.Disp.Level = 42
	p.Disp.Experience = 123456
	p.Disp.CharClass = ClassHUcast
	require.NoError(t, p.Inventory.Add(monomate(1, 5)))
	require.NoError(t, p.Inventory.Add(newInventoryMeseta(250)))
	require.NoError(t, p.Bank.Add(BankItem{Data: monomate(2, 9).Data, Amount: 9}))

	data, err := SavePlayer(p)
	require.NoError(t, err)

	loaded, err := LoadPlayer(data)
	require.NoError(t, err)

	require.Equal(t, p.Disp.Level, loaded.Disp.Level)
	require.Equal(t, p.Disp.Experience, loaded.Disp.Experience)
	require.Equal(t, p.Disp.CharClass, loaded.Disp.CharClass)
	require.Equal(t, p.Inventory.Meseta, loaded.Inventory.Meseta)
	require.Len(t, loaded.Inventory.Items, 1)
	require.Equal(t, p.Inventory.Items[0].Data.ItemID, loaded.Inventory.Items[0].Data.ItemID)
	require.Len(t, loaded.Bank.Items, 1)
}

func TestLoadPlayerRejectsBadMagic(t *testing.T) {
	_, err := LoadPlayer(make([]byte, 128))
	require.ErrorIs(t, err, ErrBadSaveMagic)
}

func TestLoadPlayerRejectsTruncated(t *testing.T) {
	_, err := LoadPlayer([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadSaveMagic)
}
