package crypto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrDetectionFailed is returned when no candidate key decrypts the first
// command into the expected plaintext prefix (spec.md §7 "Encryption
// detection failure").
var ErrDetectionFailed = errors.New("bb key detection failed: no candidate key matched")

// expectedFirstCommandPrefix is the first 8 bytes of a known BB
// authentication command: size=0x00B4, command=0x0093, flag=0x00000000,
// exactly as spec.md §8's BB detector testable property specifies.
var expectedFirstCommandPrefix = []byte{0xB4, 0x00, 0x93, 0x00, 0x00, 0x00, 0x00, 0x00}

// detectionTimeout bounds the candidate-key search (spec.md §9 design
// notes: "a correct rewrite must ... time out if no key matches within,
// say, one second, rather than looping forever").
const detectionTimeout = time.Second

// DetectBBKey tries each candidate key file against the first inbound
// command's ciphertext and returns the inbound cipher for whichever
// candidate produces the expected plaintext prefix, along with its index
// in candidates (the imitator uses this index to build the matching
// outbound cipher). firstCommand must be at least 8 bytes and a multiple
// of 8; only a copy is decrypted for the trial — the returned cipher has
// consumed exactly the first 8 bytes of keystream, ready to continue
// decrypting the remainder of the same command.
func DetectBBKey(ctx context.Context, candidates []*BBKeyFile, seed [bbSeedSize]byte, firstCommand []byte) (cipher *BBCipher, index int, err error) {
	if len(firstCommand) < 8 {
		return nil, -1, fmt.Errorf("bb detection: first command too short (%d bytes)", len(firstCommand))
	}

	ctx, cancel := context.WithTimeout(ctx, detectionTimeout)
	defer cancel()

	for i, kf := range candidates {
		select {
		case <-ctx.Done():
			slog.Warn("bb key detection timed out", "attempts", i, "candidates", len(candidates))
			return nil, -1, ErrDetectionFailed
		default:
		}

		trial, err := NewBBCipher(kf, seed)
		if err != nil {
			slog.Debug("bb key detection: candidate construction failed", "index", i, "err", err)
			continue
		}
		probe := make([]byte, 8)
		copy(probe, firstCommand[:8])
		if err := trial.Decrypt(probe, 8); err != nil {
			slog.Debug("bb key detection: candidate decrypt failed", "index", i, "err", err)
			continue
		}
		slog.Debug("bb key detection: trying candidate", "index", i)
		if bytes.Equal(probe, expectedFirstCommandPrefix) {
			slog.Info("bb key detection: matched candidate", "index", i, "attempts", i+1)
			return trial, i, nil
		}
	}

	slog.Warn("bb key detection failed", "candidates", len(candidates))
	return nil, -1, ErrDetectionFailed
}

// NewBBOutboundImitator builds the outbound-direction cipher that mirrors a
// resolved inbound detection: same key file and seed, independent state, so
// both directions run symmetric keystreams from the moment detection
// completes (spec.md §4B: "the outbound direction uses an imitator that
// mirrors the detector's choice using the server-side keys").
func NewBBOutboundImitator(keyFile *BBKeyFile, seed [bbSeedSize]byte) (*BBCipher, error) {
	return NewBBCipher(keyFile, seed)
}
