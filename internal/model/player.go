package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PlayerStats is the basic combat stat block shared by every display
// format (original_source's PlayerStats).
type PlayerStats struct {
	ATP uint16
	MST uint16
	EVP uint16
	HP  uint16
	DFP uint16
	ATA uint16
	LCK uint16
}

// Character classes. BB supports all 12; PC supports only the first 9
// (spec.md §4D: "PC has fewer character classes (9 vs 12)").
const (
	ClassHUmar uint8 = iota
	ClassHUnewearl
	ClassHUcast
	ClassRAmar
	ClassRAcast
	ClassRAcaseal
	ClassFOmarl
	ClassFOnewm
	ClassFOnewearl
	ClassHUcaseal
	ClassRAmarl
	ClassFOmar
)

// maxPCClass is the highest class index PC's 9-class roster represents
// (0-8); any class above this after substitution gets the NPC-substitute
// treatment. In practice no input class reaches this branch, since the
// three out-of-range classes (FOmar, RAmarl, HUcaseal) are all substituted
// above, but the check is kept as a defensive fallback, mirroring
// original_source's own dead-code guard.
const maxPCClass = 8

// V2Flags bit meaning the client should render the "ninja"/ninja-substitute
// NPC model in place of an unrepresentable class (original_source: "make
// them appear as the 'ninja' NPC").
const V2FlagNPCSubstitute uint8 = 0x02

// PlayerDispDataBB is the canonical, version-independent appearance and
// stats block every Player stores internally (spec.md §4D: "The BB form is
// canonical internally"). Field layout is grounded on original_source's
// PlayerDispDataBB (0xD0-ish struct of stats, visual parameters, and a
// 16-code-unit UTF-16LE name).
type PlayerDispDataBB struct {
	Stats             PlayerStats
	Level             uint32
	Experience        uint32
	Meseta            uint32
	GuildCardString   [16]byte
	NameColor         uint32
	ExtraModel        uint8
	NameColorChecksum uint32
	SectionID         uint8
	CharClass         uint8
	V2Flags           uint8
	Version           uint8
	V1Flags           uint32
	Costume           uint16
	Skin              uint16
	Face              uint16
	Head              uint16
	Hair              uint16
	HairR             uint16
	HairG             uint16
	HairB             uint16
	ProportionX       float32
	ProportionY       float32
	Name              [16]uint16 // UTF-16LE code units
	TechniqueLevels   [0x14]byte
}

// PlayerDispDataPCGC is the DC/PC/GC appearance and stats block, served by
// converting the canonical BB form on the fly (spec.md §4D).
type PlayerDispDataPCGC struct {
	Stats             PlayerStats
	Level             uint32
	Experience        uint32
	Meseta            uint32
	Name              [16]byte // Shift-JIS, NUL-padded
	NameColor         uint32
	ExtraModel        uint8
	NameColorChecksum uint32
	SectionID         uint8
	CharClass         uint8
	V2Flags           uint8
	Version           uint8
	V1Flags           uint32
	Costume           uint16
	Skin              uint16
	Face              uint16
	Head              uint16
	Hair              uint16
	HairR             uint16
	HairG             uint16
	HairB             uint16
	ProportionX       float32
	ProportionY       float32
	TechniqueLevels   [0x14]byte
}

// ToPCGC converts a canonical BB display block into its PC/GC form,
// applying PC's class substitution when the target is PC (spec.md §4D:
// "the conversion maps missing classes to visible-near-equivalents and
// sets the 'NPC substitute' flag if the class still doesn't fit").
// nameEncoded is the Shift-JIS-encoded, language-marker-prefixed name
// (internal/textenc handles the actual transcoding; this function only
// places the result).
func (bb PlayerDispDataBB) ToPCGC(forPC bool, nameEncoded []byte) PlayerDispDataPCGC {
	pcgc := PlayerDispDataPCGC{
		Stats:             bb.Stats,
		Level:             bb.Level,
		Experience:        bb.Experience,
		Meseta:            bb.Meseta,
		NameColor:         bb.NameColor,
		ExtraModel:        bb.ExtraModel,
		NameColorChecksum: bb.NameColorChecksum,
		SectionID:         bb.SectionID,
		CharClass:         bb.CharClass,
		V2Flags:           bb.V2Flags,
		Version:           bb.Version,
		V1Flags:           bb.V1Flags,
		Costume:           bb.Costume,
		Skin:              bb.Skin,
		Face:              bb.Face,
		Head:              bb.Head,
		Hair:              bb.Hair,
		HairR:             bb.HairR,
		HairG:             bb.HairG,
		HairB:             bb.HairB,
		ProportionX:       bb.ProportionX,
		ProportionY:       bb.ProportionY,
		TechniqueLevels:   bb.TechniqueLevels,
	}
	copy(pcgc.Name[:], nameEncoded)

	if forPC {
		switch pcgc.CharClass {
		case ClassFOmar:
			pcgc.CharClass = ClassHUmar
		case ClassRAmarl:
			pcgc.CharClass = ClassHUnewearl
		case ClassHUcaseal:
			pcgc.CharClass = ClassRAcaseal
		}
		if pcgc.CharClass > maxPCClass {
			pcgc.ExtraModel = 0
			pcgc.V2Flags |= V2FlagNPCSubstitute
		}
		pcgc.Version = 2
	}
	return pcgc
}

// PlayerDispDataBBPreview is the compact character-select-screen preview
// format (original_source's PlayerDispDataBBPreview).
type PlayerDispDataBBPreview struct {
	Experience      uint32
	Level           uint32
	GuildCardString [16]byte
	NameColor       uint32
	ExtraModel      uint8
	SectionID       uint8
	CharClass       uint8
	V2Flags         uint8
	Version         uint8
	V1Flags         uint32
	Costume         uint16
	Skin            uint16
	Face            uint16
	Head            uint16
	Hair            uint16
	HairR           uint16
	HairG           uint16
	HairB           uint16
	ProportionX     float32
	ProportionY     float32
	Name            [16]uint16
	PlayTime        uint32
}

// ToPreview compresses the canonical display block into a character-select
// preview record.
func (bb PlayerDispDataBB) ToPreview() PlayerDispDataBBPreview {
	return PlayerDispDataBBPreview{
		Experience:      bb.Experience,
		Level:           bb.Level,
		GuildCardString: bb.GuildCardString,
		NameColor:       bb.NameColor,
		ExtraModel:      bb.ExtraModel,
		SectionID:       bb.SectionID,
		CharClass:       bb.CharClass,
		V2Flags:         bb.V2Flags,
		Version:         bb.Version,
		V1Flags:         bb.V1Flags,
		Costume:         bb.Costume,
		Skin:            bb.Skin,
		Face:            bb.Face,
		Head:            bb.Head,
		Hair:            bb.Hair,
		HairR:           bb.HairR,
		HairG:           bb.HairG,
		HairB:           bb.HairB,
		ProportionX:     bb.ProportionX,
		ProportionY:     bb.ProportionY,
		Name:            bb.Name,
	}
}

// ApplyPreview overlays a character-select edit (name/appearance only)
// back onto the canonical display block.
func (bb *PlayerDispDataBB) ApplyPreview(p PlayerDispDataBBPreview) {
	bb.NameColor = p.NameColor
	bb.ExtraModel = p.ExtraModel
	bb.SectionID = p.SectionID
	bb.CharClass = p.CharClass
	bb.V2Flags = p.V2Flags
	bb.Version = p.Version
	bb.V1Flags = p.V1Flags
	bb.Costume = p.Costume
	bb.Skin = p.Skin
	bb.Face = p.Face
	bb.Head = p.Head
	bb.Hair = p.Hair
	bb.HairR = p.HairR
	bb.HairG = p.HairG
	bb.HairB = p.HairB
	bb.ProportionX = p.ProportionX
	bb.ProportionY = p.ProportionY
	bb.Name = p.Name
}

// saveMagic is the header signature on a serialized player save (spec.md
// §4D: "a header-magic string, then the full Player-BB structure;
// mismatched magic fails the load"). Grounded on original_source's
// PLAYER_FILE_SIGNATURE constant.
const saveMagic = "openpso player save format v1"

// ErrBadSaveMagic is returned by LoadPlayer when a file's header doesn't
// match saveMagic.
var ErrBadSaveMagic = fmt.Errorf("player save: bad magic")

// Player is one character's full persisted state: display data, inventory,
// bank, and the small set of per-character bookkeeping fields the server
// needs beyond what's relayed opaquely to other clients.
type Player struct {
	Disp      PlayerDispDataBB
	Inventory *Inventory
	Bank      *PlayerBank
	InfoBoard [0xAC]uint16
	AutoReply [0xAC]uint16
	Blocked   [30]uint32
}

// NewPlayer returns a Player with empty containers, ready for character
// creation to populate.
func NewPlayer() *Player {
	return &Player{Inventory: NewInventory(), Bank: NewPlayerBank()}
}

const saveMagicFieldSize = 64

// SavePlayer serializes p to its on-disk save format: a fixed-size magic
// field, then the canonical display block, inventory, and bank as
// fixed-width binary records.
func SavePlayer(p *Player) ([]byte, error) {
	var buf bytes.Buffer

	magic := make([]byte, saveMagicFieldSize)
	copy(magic, saveMagic)
	buf.Write(magic)

	if err := binary.Write(&buf, binary.LittleEndian, p.Disp); err != nil {
		return nil, fmt.Errorf("save player: writing disp data: %w", err)
	}

	numItems := uint8(len(p.Inventory.Items))
	if err := binary.Write(&buf, binary.LittleEndian, numItems); err != nil {
		return nil, fmt.Errorf("save player: writing inventory count: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, p.Inventory.Items); err != nil {
		return nil, fmt.Errorf("save player: writing inventory items: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, p.Inventory.Meseta); err != nil {
		return nil, fmt.Errorf("save player: writing inventory meseta: %w", err)
	}

	numBankItems := uint32(len(p.Bank.Items))
	if err := binary.Write(&buf, binary.LittleEndian, numBankItems); err != nil {
		return nil, fmt.Errorf("save player: writing bank count: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, p.Bank.Items); err != nil {
		return nil, fmt.Errorf("save player: writing bank items: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, p.Bank.Meseta); err != nil {
		return nil, fmt.Errorf("save player: writing bank meseta: %w", err)
	}

	return buf.Bytes(), nil
}

// LoadPlayer parses a player save produced by SavePlayer, failing with
// ErrBadSaveMagic if the header doesn't match.
func LoadPlayer(data []byte) (*Player, error) {
	if len(data) < saveMagicFieldSize {
		return nil, fmt.Errorf("load player: truncated header: %w", ErrBadSaveMagic)
	}
	magic := bytes.TrimRight(data[:saveMagicFieldSize], "\x00")
	if string(magic) != saveMagic {
		return nil, ErrBadSaveMagic
	}

	r := bytes.NewReader(data[saveMagicFieldSize:])
	p := NewPlayer()

	if err := binary.Read(r, binary.LittleEndian, &p.Disp); err != nil {
		return nil, fmt.Errorf("load player: reading disp data: %w", err)
	}

	var numItems uint8
	if err := binary.Read(r, binary.LittleEndian, &numItems); err != nil {
		return nil, fmt.Errorf("load player: reading inventory count: %w", err)
	}
	p.Inventory.Items = make([]InventoryItem, numItems)
	if err := binary.Read(r, binary.LittleEndian, p.Inventory.Items); err != nil {
		return nil, fmt.Errorf("load player: reading inventory items: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &p.Inventory.Meseta); err != nil {
		return nil, fmt.Errorf("load player: reading inventory meseta: %w", err)
	}

	var numBankItems uint32
	if err := binary.Read(r, binary.LittleEndian, &numBankItems); err != nil {
		return nil, fmt.Errorf("load player: reading bank count: %w", err)
	}
	p.Bank.Items = make([]BankItem, numBankItems)
	if err := binary.Read(r, binary.LittleEndian, p.Bank.Items); err != nil {
		return nil, fmt.Errorf("load player: reading bank items: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &p.Bank.Meseta); err != nil {
		return nil, fmt.Errorf("load player: reading bank meseta: %w", err)
	}

	return p, nil
}
