package crypto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPCCipherRoundTrip(t *testing.T) {
	enc := NewPCCipher(0x12345678)
	dec := NewPCCipher(0x12345678)

	plain := []byte("0123456789abcdef")
	buf := append([]byte(nil), plain...)

	require.NoError(t, enc.Encrypt(buf, len(buf)))
	require.NotEqual(t, plain, buf)
	require.NoError(t, dec.Decrypt(buf, len(buf)))
	require.Equal(t, plain, buf)
}

func TestPCCipherDeterministicChunking(t *testing.T) {
	whole := NewPCCipher(0x12345678)
	chunked := NewPCCipher(0x12345678)

	bufWhole := make([]byte, 16)
	require.NoError(t, whole.Encrypt(bufWhole, 16))

	bufChunked := make([]byte, 16)
	for i := 0; i < 16; i += 4 {
		require.NoError(t, chunked.Encrypt(bufChunked[i:i+4], 4))
	}

	require.Equal(t, bufWhole, bufChunked)
}

func TestPCCipherSameKeySameStream(t *testing.T) {
	a := NewPCCipher(42)
	b := NewPCCipher(42)
	bufA := make([]byte, 64)
	bufB := make([]byte, 64)
	require.NoError(t, a.Encrypt(bufA, 64))
	require.NoError(t, b.Encrypt(bufB, 64))
	require.Equal(t, bufA, bufB)
}

func TestGCCipherRoundTrip(t *testing.T) {
	enc := NewGCCipher(0xCAFEBABE)
	dec := NewGCCipher(0xCAFEBABE)

	plain := make([]byte, 128)
	for i := range plain {
		plain[i] = byte(i)
	}
	buf := append([]byte(nil), plain...)

	require.NoError(t, enc.Encrypt(buf, len(buf)))
	require.NoError(t, dec.Decrypt(buf, len(buf)))
	require.Equal(t, plain, buf)
}

func TestGCCipherRejectsUnalignedSize(t *testing.T) {
	c := NewGCCipher(1)
	err := c.Encrypt(make([]byte, 6), 6)
	require.Error(t, err)
}

func testKeyFile(seed uint32) *BBKeyFile {
	kf := &BBKeyFile{}
	v := seed
	for i := range kf.Initial {
		v = v*1103515245 + 12345
		kf.Initial[i] = v
	}
	for i := range kf.Private {
		v = v*1103515245 + 12345
		kf.Private[i] = v
	}
	return kf
}

func TestBBCipherRoundTrip(t *testing.T) {
	kf := testKeyFile(7)
	var seed [48]byte
	for i := range seed {
		seed[i] = byte(i * 3)
	}

	enc, err := NewBBCipher(kf, seed)
	require.NoError(t, err)
	dec, err := NewBBCipher(kf, seed)
	require.NoError(t, err)

	plain := make([]byte, 64)
	for i := range plain {
		plain[i] = byte(255 - i)
	}
	buf := append([]byte(nil), plain...)

	require.NoError(t, enc.Encrypt(buf, len(buf)))
	require.NoError(t, dec.Decrypt(buf, len(buf)))
	require.Equal(t, plain, buf)
}

func TestBBDetectorFindsMatchingKey(t *testing.T) {
	var seed [48]byte
	for i := range seed {
		seed[i] = byte(i + 1)
	}

	candidates := []*BBKeyFile{testKeyFile(1), testKeyFile(2), testKeyFile(3)}
	winnerIdx := 2

	serverCipher, err := NewBBCipher(candidates[winnerIdx], seed)
	require.NoError(t, err)

	plainCommand := append([]byte{0xB4, 0x00, 0x93, 0x00, 0x00, 0x00, 0x00, 0x00}, make([]byte, 0xB4-8)...)
	ciphertext := append([]byte(nil), plainCommand...)
	require.NoError(t, serverCipher.Encrypt(ciphertext, len(ciphertext)))

	cipher, idx, err := DetectBBKey(context.Background(), candidates, seed, ciphertext)
	require.NoError(t, err)
	require.Equal(t, winnerIdx, idx)

	rest := append([]byte(nil), ciphertext[8:]...)
	require.NoError(t, cipher.Decrypt(rest, len(rest)))
	require.Equal(t, plainCommand[8:], rest)
}

func TestBBDetectorFailsDeterministically(t *testing.T) {
	var seed [48]byte
	candidates := []*BBKeyFile{testKeyFile(1), testKeyFile(2)}

	garbage := make([]byte, 16)
	for i := range garbage {
		garbage[i] = 0xFF
	}

	_, _, err := DetectBBKey(context.Background(), candidates, seed, garbage)
	require.ErrorIs(t, err, ErrDetectionFailed)
}

func TestBBOutboundImitatorMirrorsInbound(t *testing.T) {
	kf := testKeyFile(9)
	var seed [48]byte
	inbound, err := NewBBCipher(kf, seed)
	require.NoError(t, err)
	outbound, err := NewBBOutboundImitator(kf, seed)
	require.NoError(t, err)

	require.Equal(t, inbound.state, outbound.state)
}
