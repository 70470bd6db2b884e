package secp256k1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/custodian/internal/crypto"
)

func TestSignAndRecover(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	digest := crypto.KeccakData([]byte("forward request"))
	sig, err := Sign(key, digest)
	require.NoError(t, err)
	require.Len(t, sig, SignatureSize)
	assert.Contains(t, []byte{27, 28}, sig[SignatureSize-1])

	recovered, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, key.Address(), recovered)
}

func TestRecoverAcceptsRawRecoveryID(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	digest := crypto.KeccakData([]byte("raw v"))
	sig, err := Sign(key, digest)
	require.NoError(t, err)
	sig[SignatureSize-1] -= 27

	recovered, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, key.Address(), recovered)
}

func TestRecoverDifferentDigest(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	sig, err := Sign(key, crypto.KeccakData([]byte("a")))
	require.NoError(t, err)

	recovered, err := RecoverAddress(crypto.KeccakData([]byte("b")), sig)
	if err == nil {
		assert.NotEqual(t, key.Address(), recovered)
	}
}

func TestRecoverMalformed(t *testing.T) {
	digest := crypto.KeccakData([]byte("malformed"))

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 64)},
		{"bad recovery id", append(bytes.Repeat([]byte{1}, 64), 5)},
		{"zero s", append(append(bytes.Repeat([]byte{1}, 32), make([]byte, 32)...), 27)},
		{"high s", append(append(bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{0xff}, 32)...), 27)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RecoverAddress(digest, tc.sig)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	_, err := AddressFromPublicKey(make([]byte, 33))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	pub := make([]byte, PublicKeySize)
	pub[0] = 0x02
	_, err = AddressFromPublicKey(pub)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestGenerateKeyFromSeed(t *testing.T) {
	k, err := GenerateKeyFromSeed(bytes.NewReader(bytes.Repeat([]byte{7}, 128)))
	require.NoError(t, err)
	require.Len(t, k, PrivateKeySize)

	digest := crypto.KeccakData([]byte("seeded"))
	sig, err := Sign(k, digest)
	require.NoError(t, err)
	recovered, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, k.Address(), recovered)
}
