// Package quest indexes the quest files under a quest directory: it scans
// filenames, classifies them by category/id/version, decompresses each
// .bin file with internal/prs, and parses the version/category-specific
// header for the quest's name and descriptions (spec.md §6's "Quest
// files" entry).
package quest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/prs"
	"github.com/openpso/server/internal/textenc"
)

// Category classifies a quest by the filename prefix it was found under.
type Category int

const (
	CategoryNormal Category = iota
	CategoryBattle
	CategoryChallenge
	CategoryEpisode3
)

func (c Category) String() string {
	switch c {
	case CategoryBattle:
		return "battle"
	case CategoryChallenge:
		return "challenge"
	case CategoryEpisode3:
		return "episode3"
	default:
		return "normal"
	}
}

// Info describes one indexed quest.
type Info struct {
	ID          int
	Category    Category
	Version     constants.Version
	Name        string
	ShortDesc   string
	LongDesc    string
	Episode     uint8
	Path        string
}

var (
	battlePattern    = regexp.MustCompile(`^b(\d+)-(\w+)\.bin$`)
	challengePattern = regexp.MustCompile(`^c(\d+)-(\w+)\.bin$`)
	episode3Pattern  = regexp.MustCompile(`^e(\d+)-gc3\.bin$`)
	normalPattern    = regexp.MustCompile(`^q(\d+)-([A-Za-z0-9]+)-(\w+)\.bin$`)
)

// ScanDirectory walks dir (non-recursively, matching the original's flat
// quest directory layout) and returns every quest it could classify and
// parse. Filenames that don't match any of the four patterns, or that fail
// to decompress/parse, are reported in skipped rather than failing the
// whole scan — a single bad quest file must not take down the index.
func ScanDirectory(dir string) (quests []Info, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("quest: read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		info, reason := classify(name)
		if reason != "" {
			skipped = append(skipped, fmt.Sprintf("%s: %s", name, reason))
			continue
		}

		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		decompressed, err := prs.Decompress(raw, 0)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: decompress: %v", name, err))
			continue
		}
		if err := parseHeader(info, decompressed); err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: header: %v", name, err))
			continue
		}

		info.Path = path
		quests = append(quests, *info)
	}

	return quests, skipped, nil
}

// classify determines a quest file's category, id, and version from its
// filename alone, returning a non-empty reason when the name matches none
// of the four layouts.
func classify(name string) (*Info, string) {
	if m := battlePattern.FindStringSubmatch(name); m != nil {
		id, v, err := parseIDVersion(m[1], m[2])
		if err != "" {
			return nil, err
		}
		return &Info{ID: id, Category: CategoryBattle, Version: v}, ""
	}
	if m := challengePattern.FindStringSubmatch(name); m != nil {
		id, v, err := parseIDVersion(m[1], m[2])
		if err != "" {
			return nil, err
		}
		return &Info{ID: id, Category: CategoryChallenge, Version: v}, ""
	}
	if m := episode3Pattern.FindStringSubmatch(name); m != nil {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, "malformed quest id"
		}
		return &Info{ID: id, Category: CategoryEpisode3, Version: constants.VersionEp3}, ""
	}
	if m := normalPattern.FindStringSubmatch(name); m != nil {
		id, v, errStr := parseIDVersion(m[1], m[3])
		if errStr != "" {
			return nil, errStr
		}
		_ = m[2] // named category token, currently unused beyond filename classification
		return &Info{ID: id, Category: CategoryNormal, Version: v}, ""
	}
	return nil, "filename does not match a known quest naming pattern"
}

func parseIDVersion(idStr, versionToken string) (int, constants.Version, string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, 0, "malformed quest id"
	}
	v, ok := constants.ParseVersion(versionToken)
	if !ok {
		return 0, 0, fmt.Sprintf("unrecognized version token %q", versionToken)
	}
	return id, v, ""
}

// Header field widths. BB quests store header text as UTF-16LE; every
// other version stores it as Shift-JIS. Episode 3 quests use a shorter
// header with no long description (card-game quests have no in-game
// briefing text).
const (
	shiftJISNameSize  = 32
	shiftJISShortSize = 128
	shiftJISLongSize  = 288
	utf16NameSize     = 64
	utf16ShortSize    = 256
	utf16LongSize     = 576
)

// parseHeader fills in info.Name/ShortDesc/LongDesc/Episode from data's
// header, using one of four layouts keyed by (category, version) as
// described in spec.md §6.
func parseHeader(info *Info, data []byte) error {
	if info.Category == CategoryEpisode3 {
		return parseFixedHeader(info, data, shiftJISNameSize, shiftJISShortSize, 0)
	}
	if info.Version == constants.VersionBB {
		return parseFixedHeader(info, data, utf16NameSize, utf16ShortSize, utf16LongSize)
	}
	return parseFixedHeader(info, data, shiftJISNameSize, shiftJISShortSize, shiftJISLongSize)
}

// parseFixedHeader reads a one-byte episode tag, then name/short/long text
// fields of the given sizes, decoding with Shift-JIS or UTF-16LE depending
// on whether nameSize matches the wide-character layout.
func parseFixedHeader(info *Info, data []byte, nameSize, shortSize, longSize int) error {
	wide := nameSize == utf16NameSize
	total := 1 + nameSize + shortSize + longSize
	if len(data) < total {
		return fmt.Errorf("header too short: have %d bytes, need %d", len(data), total)
	}

	info.Episode = data[0]
	pos := 1

	decode := func(n int) string {
		field := data[pos : pos+n]
		pos += n
		if wide {
			return textenc.DecodeUTF16LEString(field)
		}
		return unitsToString(textenc.DecodeShiftJIS(field))
	}

	info.Name = decode(nameSize)
	info.ShortDesc = decode(shortSize)
	if longSize > 0 {
		info.LongDesc = decode(longSize)
	}
	return nil
}

func unitsToString(units []uint16) string {
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}
