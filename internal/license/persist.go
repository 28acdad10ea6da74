package license

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openpso/server/internal/constants"
)

// binaryRecord is the fixed-size on-disk shape of one License (spec.md §6:
// "a packed array of fixed-size license records"), grounded on
// original_source's BinaryLicense struct (fixed-width ASCII fields plus
// serial/privileges/ban-end-time).
type binaryRecord struct {
	Username     [usernameSize]byte
	BBPassword   [bbPasswordSize]byte
	SerialNumber uint32
	AccessKey    [accessKeySize]byte
	GCPassword   [gcPasswordSize]byte
	Privileges   uint32
	BanUntil     int64
	CreatedAt    int64 // Unix seconds
}

func packString(dst []byte, s string) {
	clear(dst)
	copy(dst, s)
}

func unpackString(src []byte) string {
	return string(bytes.TrimRight(src, "\x00"))
}

func toRecord(l License) binaryRecord {
	var rec binaryRecord
	packString(rec.Username[:], l.BBUsername)
	copy(rec.BBPassword[:], l.BBPasswordHash)
	rec.SerialNumber = l.SerialNumber
	packString(rec.AccessKey[:], l.AccessKey)
	copy(rec.GCPassword[:], l.GCPasswordHash)
	rec.Privileges = uint32(l.Privileges)
	rec.BanUntil = l.BanUntil
	rec.CreatedAt = l.CreatedAt.Unix()
	return rec
}

func fromRecord(rec binaryRecord) License {
	return License{
		SerialNumber:   rec.SerialNumber,
		AccessKey:      unpackString(rec.AccessKey[:]),
		GCPasswordHash: append([]byte(nil), rec.GCPassword[:]...),
		BBUsername:     unpackString(rec.Username[:]),
		BBPasswordHash: append([]byte(nil), rec.BBPassword[:]...),
		Privileges:     constants.Privilege(rec.Privileges),
		BanUntil:       rec.BanUntil,
		CreatedAt:      time.Unix(rec.CreatedAt, 0),
	}
}

// LoadStore reads a license file written by Persist. A missing file yields
// an empty store bound to path, ready for Persist to create it.
func LoadStore(path string) (*Store, error) {
	s := NewStore()
	s.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("license store: reading %s: %w", path, err)
	}

	r := bytes.NewReader(data)
	recordSize := binary.Size(binaryRecord{})
	for r.Len() > 0 {
		if r.Len() < recordSize {
			return nil, fmt.Errorf("license store: %s: truncated record", path)
		}
		var rec binaryRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("license store: reading record: %w", err)
		}
		s.Add(fromRecord(rec))
	}
	return s, nil
}

// Persist atomically rewrites the store's license file: the new contents
// are written to a temp file in the same directory, then renamed over the
// destination. The store does not call it on mutation: Add, Remove and
// BanUntil change only the in-memory maps, and cmd/psoserver calls
// Persist once at shutdown.
func (s *Store) Persist() error {
	s.mu.RLock()
	records := make([]binaryRecord, 0, len(s.bySerial))
	for _, l := range s.bySerial {
		records = append(records, toRecord(*l))
	}
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("license store: no path bound, cannot persist")
	}

	var buf bytes.Buffer
	for _, rec := range records {
		if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("license store: encoding record: %w", err)
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".license-*.tmp")
	if err != nil {
		return fmt.Errorf("license store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("license store: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("license store: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("license store: renaming into place: %w", err)
	}
	return nil
}
