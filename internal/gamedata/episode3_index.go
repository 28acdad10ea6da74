package gamedata

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"unicode/utf16"

	"github.com/openpso/server/internal/prs"
	"github.com/openpso/server/internal/textenc"
)

// Episode3Card is one parsed Episode 3 trading card definition.
type Episode3Card struct {
	ID   int
	Name string
}

// Episode3Map is one parsed Episode 3 battle map definition.
type Episode3Map struct {
	ID   int
	Name string
}

// Episode3Index is the combined card/map index SPEC_FULL.md §4L adds:
// Episode 3's card game needs its own static data beyond the level/battle
// param/rare tables the base spec names, since card text and map layouts
// have no equivalent in the other five client dialects.
type Episode3Index struct {
	Cards map[int]Episode3Card
	Maps  map[int]Episode3Map
}

var (
	cardFilePattern = regexp.MustCompile(`^card(\d+)\.prs$`)
	mapFilePattern  = regexp.MustCompile(`^map(\d+)\.prs$`)
)

// LoadEpisode3Index scans cardDir and mapDir for PRS-compressed card/map
// definition files, each named card###.prs or map###.prs containing a
// single Shift-JIS name field as its entire decompressed payload.
func LoadEpisode3Index(cardDir, mapDir string) (*Episode3Index, error) {
	idx := &Episode3Index{
		Cards: make(map[int]Episode3Card),
		Maps:  make(map[int]Episode3Map),
	}

	if err := scanNamedEntries(cardDir, cardFilePattern, func(id int, name string) {
		idx.Cards[id] = Episode3Card{ID: id, Name: name}
	}); err != nil {
		return nil, fmt.Errorf("gamedata: load episode 3 cards: %w", err)
	}
	if err := scanNamedEntries(mapDir, mapFilePattern, func(id int, name string) {
		idx.Maps[id] = Episode3Map{ID: id, Name: name}
	}); err != nil {
		return nil, fmt.Errorf("gamedata: load episode 3 maps: %w", err)
	}

	slog.Info("loaded episode 3 index", "cards", len(idx.Cards), "maps", len(idx.Maps))
	return idx, nil
}

func scanNamedEntries(dir string, pattern *regexp.Regexp, add func(id int, name string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		data, err := prs.Decompress(raw, 0)
		if err != nil {
			return fmt.Errorf("decompress %s: %w", entry.Name(), err)
		}

		name := string(utf16.Decode(textenc.DecodeShiftJIS(data)))
		add(id, name)
	}
	return nil
}

// Card looks up a card by ID.
func (idx *Episode3Index) Card(id int) (Episode3Card, bool) {
	c, ok := idx.Cards[id]
	return c, ok
}

// Map looks up a battle map by ID.
func (idx *Episode3Index) Map(id int) (Episode3Map, bool) {
	m, ok := idx.Maps[id]
	return m, ok
}
