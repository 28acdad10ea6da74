// Package license implements the credential store: per-account license
// records, verification for each client dialect, and ban-until tracking
// (spec.md §4E).
package license

import (
	"errors"
	"fmt"
	"time"

	"github.com/openpso/server/internal/constants"
)

// Verification failure taxonomy (spec.md §4E: "failing with one of
// {no_username, missing_license, incorrect_access_key, incorrect_password,
// banned}").
var (
	ErrNoUsername         = errors.New("license: no username given")
	ErrMissingLicense      = errors.New("license: no license for this account")
	ErrIncorrectAccessKey = errors.New("license: incorrect access key")
	ErrIncorrectPassword  = errors.New("license: incorrect password")
	ErrBanned             = errors.New("license: account is banned")
)

// fieldSize constants match original_source's License.hh field widths
// (char username[20], char bb_password[20], char access_key[16], char
// gc_password[12]) — the binary save format's fixed-size record contract.
const (
	usernameSize  = 20
	bbPasswordSize = 20
	accessKeySize = 16
	gcPasswordSize = 12
)

// License is one account's persistent credentials (spec.md §3: "serial
// number, DC/PC/GC access key, GC password, BB username, BB password,
// privileges, ban-until timestamp"). GCPasswordHash and BBPasswordHash
// store hashCredential digests rather than plaintext (see
// credential_hash.go); AccessKey stays plaintext because VerifyV1 matches
// on a literal prefix, which a hash can't support.
type License struct {
	SerialNumber   uint32
	AccessKey      string
	GCPasswordHash []byte // gcPasswordSize bytes
	BBUsername     string
	BBPasswordHash []byte // bbPasswordSize bytes
	Privileges     constants.Privilege
	// BanUntil is microseconds since the Unix epoch; zero means not banned.
	BanUntil int64
	// CreatedAt is informational only (spec.md's supplemental addition),
	// not consulted by any invariant.
	CreatedAt time.Time
}

// IsBanned reports whether the license is currently banned, given now.
func (l License) IsBanned(now time.Time) bool {
	return l.BanUntil != 0 && now.UnixMicro() < l.BanUntil
}

func clampString(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// NewPCLicense builds a license usable by verify_v1/verify_v2 and
// (truncated to its first 8 characters) by DC v1.
func NewPCLicense(serial uint32, accessKey string) License {
	return License{SerialNumber: serial, AccessKey: clampString(accessKey, accessKeySize), CreatedAt: time.Now()}
}

// NewGCLicense builds a license usable by verify_gc, additionally carrying
// a GC password. Panics only on an unreachable Blowfish key-size failure
// (hashCredential's key is a fixed 16 bytes, so NewCipher cannot fail in
// practice); callers that need a recoverable path should call
// hashCredentialN directly.
func NewGCLicense(serial uint32, accessKey, gcPassword string) License {
	hash, err := hashCredentialN(gcPassword, gcPasswordSize)
	if err != nil {
		panic(err)
	}
	return License{
		SerialNumber:   serial,
		AccessKey:      clampString(accessKey, accessKeySize),
		GCPasswordHash: hash,
		CreatedAt:      time.Now(),
	}
}

// NewBBLicense builds a license usable by verify_bb.
func NewBBLicense(serial uint32, username, password string) License {
	hash, err := hashCredentialN(password, bbPasswordSize)
	if err != nil {
		panic(err)
	}
	return License{
		SerialNumber:   serial,
		BBUsername:     clampString(username, usernameSize),
		BBPasswordHash: hash,
		CreatedAt:      time.Now(),
	}
}

// verifyFailure wraps one of the sentinel errors above with the serial or
// username that failed, so logs stay actionable without leaking
// credentials into the error string.
func verifyFailure(sentinel error, context string) error {
	return fmt.Errorf("license verify %s: %w", context, sentinel)
}
