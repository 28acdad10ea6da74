package gamedata

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/openpso/server/internal/prs"
)

// Enemy stat block sizes from spec.md §6: "fixed-size 2×3×4×0x60 array of
// 40-byte records (online/offline × episode × difficulty × monster-type)".
const (
	battleParamModes       = 2
	battleParamEpisodes    = 3
	battleParamDifficulty  = 4
	battleParamMonsterType = 0x60
	battleParamRecordSize  = 40
)

// BattleParamEntry is one (mode, episode, difficulty, monster-type)
// enemy's combat stat block.
type BattleParamEntry struct {
	ATP   uint16
	MST   uint16
	EVP   uint16
	HP    uint32
	DFP   uint16
	ATA   uint16
	LCK   uint16
	ESP   uint16
	EXP   uint32
	Extra [battleParamRecordSize - 22]byte
}

// BattleParamTable is the decoded BattleParamEntry*.dat contents.
type BattleParamTable struct {
	entries [battleParamModes][battleParamEpisodes][battleParamDifficulty][battleParamMonsterType]BattleParamEntry
}

// LoadBattleParamTable reads, PRS-decompresses, and parses a battle
// parameter file.
func LoadBattleParamTable(path string) (*BattleParamTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamedata: read battle params %s: %w", path, err)
	}
	data, err := prs.Decompress(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("gamedata: decompress battle params: %w", err)
	}

	want := battleParamModes * battleParamEpisodes * battleParamDifficulty * battleParamMonsterType * battleParamRecordSize
	if len(data) < want {
		return nil, fmt.Errorf("gamedata: battle param file too short: have %d bytes, need %d", len(data), want)
	}

	var t BattleParamTable
	pos := 0
	for mode := 0; mode < battleParamModes; mode++ {
		for ep := 0; ep < battleParamEpisodes; ep++ {
			for diff := 0; diff < battleParamDifficulty; diff++ {
				for mon := 0; mon < battleParamMonsterType; mon++ {
					rec := data[pos : pos+battleParamRecordSize]
					e := BattleParamEntry{
						ATP: binary.LittleEndian.Uint16(rec[0:2]),
						MST: binary.LittleEndian.Uint16(rec[2:4]),
						EVP: binary.LittleEndian.Uint16(rec[4:6]),
						HP:  binary.LittleEndian.Uint32(rec[6:10]),
						DFP: binary.LittleEndian.Uint16(rec[10:12]),
						ATA: binary.LittleEndian.Uint16(rec[12:14]),
						LCK: binary.LittleEndian.Uint16(rec[14:16]),
						ESP: binary.LittleEndian.Uint16(rec[16:18]),
						EXP: binary.LittleEndian.Uint32(rec[18:22]),
					}
					copy(e.Extra[:], rec[22:])
					t.entries[mode][ep][diff][mon] = e
					pos += battleParamRecordSize
				}
			}
		}
	}

	slog.Info("loaded battle param table", "modes", battleParamModes, "episodes", battleParamEpisodes)
	return &t, nil
}

// Entry returns the stat block for a given (mode, episode, difficulty,
// monster-type) combination, all zero-indexed.
func (t *BattleParamTable) Entry(mode, episode, difficulty, monsterType int) (BattleParamEntry, error) {
	if mode < 0 || mode >= battleParamModes {
		return BattleParamEntry{}, fmt.Errorf("gamedata: mode %d out of range", mode)
	}
	if episode < 0 || episode >= battleParamEpisodes {
		return BattleParamEntry{}, fmt.Errorf("gamedata: episode %d out of range", episode)
	}
	if difficulty < 0 || difficulty >= battleParamDifficulty {
		return BattleParamEntry{}, fmt.Errorf("gamedata: difficulty %d out of range", difficulty)
	}
	if monsterType < 0 || monsterType >= battleParamMonsterType {
		return BattleParamEntry{}, fmt.Errorf("gamedata: monster type %d out of range", monsterType)
	}
	return t.entries[mode][episode][difficulty][monsterType], nil
}
