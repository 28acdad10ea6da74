// Package gamedata loads the server's static data files: the per-class
// level table, the battle-parameter array, and the rare-item table
// (spec.md §6's file-formats list), plus the Episode 3 card/map indices
// (SPEC_FULL.md §4L). Every table here is PRS-compressed on disk and
// immutable once loaded, matching the teacher's data-package idiom of a
// package-level registry built once at startup by a Load function and
// read by any number of goroutines without synchronization (spec.md §5:
// "static data indices... are loaded at startup and are immutable
// thereafter; any number of readers may use them without synchronization").
package gamedata

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/openpso/server/internal/prs"
)

const classCount = 12

// BaseStats is one class's starting stat block, a 14-byte record (7
// little-endian uint16 fields) at the head of the level table file.
type BaseStats struct {
	ATP uint16
	MST uint16
	EVP uint16
	HP  uint16
	DFP uint16
	ATA uint16
	LCK uint16
}

const baseStatsSize = 14

// LevelEntry is one class's per-level stat growth, an 8-byte record (4
// little-endian uint16 deltas) in one of the level table's 12 200-entry
// arrays.
type LevelEntry struct {
	ATPDelta uint16
	MSTDelta uint16
	EVPDelta uint16
	HPDelta  uint16
}

const (
	levelEntrySize  = 8
	levelsPerClass  = 200
)

// LevelTable is the decoded contents of PlyLevelTbl.prs: one BaseStats
// plus a 200-entry LevelEntry array per class.
type LevelTable struct {
	Base   [classCount]BaseStats
	Levels [classCount][levelsPerClass]LevelEntry
}

// LoadLevelTable reads, PRS-decompresses, and parses a level table file.
func LoadLevelTable(path string) (*LevelTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamedata: read level table %s: %w", path, err)
	}
	data, err := prs.Decompress(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("gamedata: decompress level table: %w", err)
	}

	want := classCount*baseStatsSize + classCount*levelsPerClass*levelEntrySize
	if len(data) < want {
		return nil, fmt.Errorf("gamedata: level table too short: have %d bytes, need %d", len(data), want)
	}

	var t LevelTable
	pos := 0
	for c := 0; c < classCount; c++ {
		t.Base[c] = BaseStats{
			ATP: binary.LittleEndian.Uint16(data[pos : pos+2]),
			MST: binary.LittleEndian.Uint16(data[pos+2 : pos+4]),
			EVP: binary.LittleEndian.Uint16(data[pos+4 : pos+6]),
			HP:  binary.LittleEndian.Uint16(data[pos+6 : pos+8]),
			DFP: binary.LittleEndian.Uint16(data[pos+8 : pos+10]),
			ATA: binary.LittleEndian.Uint16(data[pos+10 : pos+12]),
			LCK: binary.LittleEndian.Uint16(data[pos+12 : pos+14]),
		}
		pos += baseStatsSize
	}
	for c := 0; c < classCount; c++ {
		for lvl := 0; lvl < levelsPerClass; lvl++ {
			t.Levels[c][lvl] = LevelEntry{
				ATPDelta: binary.LittleEndian.Uint16(data[pos : pos+2]),
				MSTDelta: binary.LittleEndian.Uint16(data[pos+2 : pos+4]),
				EVPDelta: binary.LittleEndian.Uint16(data[pos+4 : pos+6]),
				HPDelta:  binary.LittleEndian.Uint16(data[pos+6 : pos+8]),
			}
			pos += levelEntrySize
		}
	}

	slog.Info("loaded level table", "classes", classCount, "levels_per_class", levelsPerClass)
	return &t, nil
}

// StatsAtLevel sums class's base stats plus every level delta up to and
// including level (0-indexed; level 0 adds the first delta to the base stats).
func (t *LevelTable) StatsAtLevel(class int, level int) (BaseStats, error) {
	if class < 0 || class >= classCount {
		return BaseStats{}, fmt.Errorf("gamedata: class %d out of range", class)
	}
	if level < 0 || level >= levelsPerClass {
		return BaseStats{}, fmt.Errorf("gamedata: level %d out of range", level)
	}

	stats := t.Base[class]
	for lvl := 0; lvl <= level; lvl++ {
		e := t.Levels[class][lvl]
		stats.ATP += e.ATPDelta
		stats.MST += e.MSTDelta
		stats.EVP += e.EVPDelta
		stats.HP += e.HPDelta
	}
	return stats, nil
}
