package protocol

import (
	"testing"

	"github.com/openpso/server/internal/constants"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripAllVersions(t *testing.T) {
	versions := []constants.Version{
		constants.VersionDCv1,
		constants.VersionDCv2,
		constants.VersionPC,
		constants.VersionGC,
		constants.VersionEp3,
		constants.VersionBB,
	}

	for _, v := range versions {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			buf := make([]byte, v.HeaderSize())
			want := Header{Command: 0x93, Flag: 7, Size: v.HeaderSize() + 16}

			n, err := EncodeHeader(v, buf, want)
			require.NoError(t, err)
			require.Equal(t, v.HeaderSize(), n)

			got, err := DecodeHeader(v, buf)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestDecodeHeaderRejectsUndersizedDeclaration(t *testing.T) {
	buf := make([]byte, constants.VersionBB.HeaderSize())
	_, err := EncodeHeader(constants.VersionBB, buf, Header{Command: 1, Size: 2})
	require.NoError(t, err)

	_, err = DecodeHeader(constants.VersionBB, buf)
	require.Error(t, err)
}

func TestDecodeHeaderRejectsOversizedDeclaration(t *testing.T) {
	buf := make([]byte, constants.VersionPC.HeaderSize())
	_, err := EncodeHeader(constants.VersionPC, buf, Header{Command: 1, Size: constants.MaxCommandSize + 1})
	require.NoError(t, err)

	_, err = DecodeHeader(constants.VersionPC, buf)
	require.Error(t, err)
}

func TestRoundUp(t *testing.T) {
	require.Equal(t, 8, roundUp(8, 4))
	require.Equal(t, 12, roundUp(9, 4))
	require.Equal(t, 16, roundUp(9, 8))
	require.Equal(t, 8, roundUp(8, 8))
}
