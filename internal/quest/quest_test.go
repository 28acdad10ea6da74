package quest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpso/server/internal/constants"
	"github.com/openpso/server/internal/prs"
	"github.com/openpso/server/internal/textenc"
)

func writeQuestFile(t *testing.T, dir, filename string, episode byte, name, short, long string, wide bool) {
	t.Helper()

	var nameSize, shortSize, longSize int
	if wide {
		nameSize, shortSize, longSize = utf16NameSize, utf16ShortSize, utf16LongSize
	} else {
		nameSize, shortSize, longSize = shiftJISNameSize, shiftJISShortSize, shiftJISLongSize
	}

	buf := make([]byte, 0, 1+nameSize+shortSize+longSize)
	buf = append(buf, episode)
	buf = append(buf, encodeField(t, name, nameSize, wide)...)
	buf = append(buf, encodeField(t, short, shortSize, wide)...)
	buf = append(buf, encodeField(t, long, longSize, wide)...)

	compressed := prs.Compress(buf)
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), compressed, 0o644))
}

func encodeField(t *testing.T, s string, size int, wide bool) []byte {
	t.Helper()
	out := make([]byte, size)
	if wide {
		copy(out, textenc.EncodeUTF16LEString(s))
	} else {
		copy(out, []byte(s))
	}
	return out
}

func TestScanDirectoryParsesNormalQuest(t *testing.T) {
	dir := t.TempDir()
	writeQuestFile(t, dir, "q001-forest-bb.bin", 1, "Forest Quest", "A short forest quest.", "A much longer description.", true)

	quests, skipped, err := ScanDirectory(dir)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, quests, 1)

	q := quests[0]
	require.Equal(t, 1, q.ID)
	require.Equal(t, CategoryNormal, q.Category)
	require.Equal(t, constants.VersionBB, q.Version)
	require.Equal(t, uint8(1), q.Episode)
	require.Equal(t, "Forest Quest", q.Name)
}

func TestScanDirectoryParsesBattleAndChallenge(t *testing.T) {
	dir := t.TempDir()
	writeQuestFile(t, dir, "b012-pc.bin", 0, "Battle Arena", "Fight!", "", false)
	writeQuestFile(t, dir, "c034-gc.bin", 0, "Challenge Run", "Climb the tower.", "", false)

	quests, skipped, err := ScanDirectory(dir)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, quests, 2)

	byCategory := map[Category]Info{}
	for _, q := range quests {
		byCategory[q.Category] = q
	}
	require.Equal(t, 12, byCategory[CategoryBattle].ID)
	require.Equal(t, constants.VersionPC, byCategory[CategoryBattle].Version)
	require.Equal(t, 34, byCategory[CategoryChallenge].ID)
	require.Equal(t, constants.VersionGC, byCategory[CategoryChallenge].Version)
}

func TestScanDirectorySkipsUnrecognizedFilenames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a quest"), 0o644))

	quests, skipped, err := ScanDirectory(dir)
	require.NoError(t, err)
	require.Empty(t, quests)
	require.Len(t, skipped, 1)
	require.Contains(t, skipped[0], "readme.txt")
}

func TestScanDirectorySkipsUnparseableBin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q005-cat-bb.bin"), []byte{0xFF, 0xFF, 0xFF}, 0o644))

	quests, skipped, err := ScanDirectory(dir)
	require.NoError(t, err)
	require.Empty(t, quests)
	require.Len(t, skipped, 1)
}
