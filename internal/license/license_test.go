package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyV2Success(t *testing.T) {
	s := NewStore()
	s.Add(NewPCLicense(1001, "abcd1234abcd1234"))

	l, err := s.VerifyV2(1001, "abcd1234abcd1234")
	require.NoError(t, err)
	require.Equal(t, uint32(1001), l.SerialNumber)
}

func TestVerifyV1UsesAccessKeyPrefix(t *testing.T) {
	s := NewStore()
	s.Add(NewPCLicense(2002, "fullaccesskey123"))

	_, err := s.VerifyV1(2002, "fullacce")
	require.NoError(t, err)

	_, err = s.VerifyV1(2002, "wrongpre")
	require.ErrorIs(t, err, ErrIncorrectAccessKey)
}

func TestVerifyMissingLicense(t *testing.T) {
	s := NewStore()
	_, err := s.VerifyV2(9999, "whatever")
	require.ErrorIs(t, err, ErrMissingLicense)
}

func TestVerifyGCChecksBothKeyAndPassword(t *testing.T) {
	s := NewStore()
	s.Add(NewGCLicense(3003, "gckey1234567890x", "gcpass"))

	_, err := s.VerifyGC(3003, "gckey1234567890x", "wrong")
	require.ErrorIs(t, err, ErrIncorrectPassword)

	_, err = s.VerifyGC(3003, "wrongkey12345678", "gcpass")
	require.ErrorIs(t, err, ErrIncorrectAccessKey)

	l, err := s.VerifyGC(3003, "gckey1234567890x", "gcpass")
	require.NoError(t, err)
	require.Equal(t, uint32(3003), l.SerialNumber)
}

func TestVerifyBB(t *testing.T) {
	s := NewStore()
	s.Add(NewBBLicense(4004, "hero", "secret"))

	_, err := s.VerifyBB("", "secret")
	require.ErrorIs(t, err, ErrNoUsername)

	_, err = s.VerifyBB("ghost", "secret")
	require.ErrorIs(t, err, ErrMissingLicense)

	_, err = s.VerifyBB("hero", "nope")
	require.ErrorIs(t, err, ErrIncorrectPassword)

	l, err := s.VerifyBB("hero", "secret")
	require.NoError(t, err)
	require.Equal(t, uint32(4004), l.SerialNumber)
}

func TestBanUntilBlocksVerify(t *testing.T) {
	s := NewStore()
	s.Add(NewPCLicense(5005, "key"))

	future := time.Now().Add(time.Hour).UnixMicro()
	require.NoError(t, s.BanUntil(5005, future))

	_, err := s.VerifyV2(5005, "key")
	require.ErrorIs(t, err, ErrBanned)

	require.NoError(t, s.BanUntil(5005, 0))
	_, err = s.VerifyV2(5005, "key")
	require.NoError(t, err)
}

func TestBanUntilMissingLicense(t *testing.T) {
	s := NewStore()
	err := s.BanUntil(1, 123)
	require.ErrorIs(t, err, ErrMissingLicense)
}

func TestRemoveLicense(t *testing.T) {
	s := NewStore()
	s.Add(NewBBLicense(6006, "gone", "pw"))
	require.Equal(t, 1, s.Count())

	s.Remove(6006)
	require.Equal(t, 0, s.Count())

	_, err := s.VerifyBB("gone", "pw")
	require.ErrorIs(t, err, ErrMissingLicense)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := NewStore()
	s.Add(NewPCLicense(7007, "key"))

	snap := s.Snapshot()
	require.Len(t, snap, 1)

	s.Remove(7007)
	require.Len(t, snap, 1)
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/licenses.dat"

	s, err := LoadStore(path)
	require.NoError(t, err)
	s.Add(NewPCLicense(1, "abcd1234abcd1234"))
	s.Add(NewGCLicense(2, "gckey1234567890x", "gcpass"))
	s.Add(NewBBLicense(3, "hero", "secret"))
	require.NoError(t, s.BanUntil(2, 999))

	require.NoError(t, s.Persist())

	reloaded, err := LoadStore(path)
	require.NoError(t, err)
	require.Equal(t, 3, reloaded.Count())

	l, err := reloaded.VerifyV2(1, "abcd1234abcd1234")
	require.NoError(t, err)
	require.Equal(t, uint32(1), l.SerialNumber)

	_, err = reloaded.VerifyBB("hero", "secret")
	require.NoError(t, err)

	snap := reloaded.Snapshot()
	var found bool
	for _, rec := range snap {
		if rec.SerialNumber == 2 {
			found = true
			require.Equal(t, int64(999), rec.BanUntil)
		}
	}
	require.True(t, found)
}

func TestLoadStoreMissingFileIsEmpty(t *testing.T) {
	s, err := LoadStore("/nonexistent/path/licenses.dat")
	require.NoError(t, err)
	require.Equal(t, 0, s.Count())
}
