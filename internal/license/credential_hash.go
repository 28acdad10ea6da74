package license

import (
	"crypto/sha1"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// credentialStretchRounds is the number of Blowfish block-encryption
// passes a credential digest is churned through before being truncated
// and stored. Cheap key stretching, not a full KDF; this repo's license
// store is a flat file with no online brute-force surface, so the goal is
// raising the cost of reading plaintext passwords back out of a stolen
// license file, not resisting a targeted offline attack.
const credentialStretchRounds = 64

// hashCredential stretches password into a 20-byte digest by keying a
// Blowfish cipher off its SHA-1 sum and repeatedly re-encrypting the first
// block (spec.md's ambient stack wires x/crypto/blowfish into the license
// store's at-rest credential hashing, a concern the teacher instead covers
// with a single plain SHA-1 pass in db.HashPassword — see DESIGN.md).
// Callers needing a shorter field (GC's 12-byte password slot) truncate
// the result.
func hashCredential(password string) ([20]byte, error) {
	sum := sha1.Sum([]byte(password))

	cipher, err := blowfish.NewCipher(sum[:16])
	if err != nil {
		return [20]byte{}, fmt.Errorf("license: building credential cipher: %w", err)
	}

	var block [8]byte
	copy(block[:], sum[:8])
	for i := 0; i < credentialStretchRounds; i++ {
		cipher.Encrypt(block[:], block[:])
	}

	var out [20]byte
	copy(out[:8], block[:])
	copy(out[8:], sum[8:])
	return out, nil
}

func hashCredentialN(password string, n int) ([]byte, error) {
	full, err := hashCredential(password)
	if err != nil {
		return nil, err
	}
	return full[:n], nil
}

func credentialsEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
