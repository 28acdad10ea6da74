package gamedata

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openpso/server/internal/prs"
)

// Rare-item table record size and indexing, from spec.md §6: "0x280-byte
// record per (episode, difficulty, section-id), indexed by computed
// offset".
const (
	rareTableRecordSize = 0x280
	rareTableEpisodes   = 3
	rareTableDifficulty = 4
	rareTableSectionIDs = 10
)

// RareItemTable is the decoded contents of a rare-item table file: one
// opaque 0x280-byte probability-table record per (episode, difficulty,
// section ID). The record's internal layout is consumed by the drop-roll
// logic, not by this loader, which only validates size and indexes.
type RareItemTable struct {
	records [rareTableEpisodes][rareTableDifficulty][rareTableSectionIDs][rareTableRecordSize]byte
}

// LoadRareItemTable reads, PRS-decompresses, and indexes a rare-item table
// file.
func LoadRareItemTable(path string) (*RareItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamedata: read rare item table %s: %w", path, err)
	}
	data, err := prs.Decompress(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("gamedata: decompress rare item table: %w", err)
	}

	want := rareTableEpisodes * rareTableDifficulty * rareTableSectionIDs * rareTableRecordSize
	if len(data) < want {
		return nil, fmt.Errorf("gamedata: rare item table too short: have %d bytes, need %d", len(data), want)
	}

	var t RareItemTable
	pos := 0
	for ep := 0; ep < rareTableEpisodes; ep++ {
		for diff := 0; diff < rareTableDifficulty; diff++ {
			for sec := 0; sec < rareTableSectionIDs; sec++ {
				copy(t.records[ep][diff][sec][:], data[pos:pos+rareTableRecordSize])
				pos += rareTableRecordSize
			}
		}
	}

	slog.Info("loaded rare item table", "episodes", rareTableEpisodes, "section_ids", rareTableSectionIDs)
	return &t, nil
}

// Record returns the raw probability-table record for a given (episode,
// difficulty, section ID) combination, all zero-indexed.
func (t *RareItemTable) Record(episode, difficulty, sectionID int) ([]byte, error) {
	if episode < 0 || episode >= rareTableEpisodes {
		return nil, fmt.Errorf("gamedata: episode %d out of range", episode)
	}
	if difficulty < 0 || difficulty >= rareTableDifficulty {
		return nil, fmt.Errorf("gamedata: difficulty %d out of range", difficulty)
	}
	if sectionID < 0 || sectionID >= rareTableSectionIDs {
		return nil, fmt.Errorf("gamedata: section id %d out of range", sectionID)
	}
	rec := t.records[episode][difficulty][sectionID]
	return rec[:], nil
}
