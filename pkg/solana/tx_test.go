package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlockhash = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"

func TestCompactU16(t *testing.T) {
	cases := map[int][]byte{
		0:      {0x00},
		0x7f:   {0x7f},
		0x80:   {0x80, 0x01},
		0x3fff: {0xff, 0x7f},
		0x4000: {0x80, 0x80, 0x01},
		0xffff: {0xff, 0xff, 0x03},
	}
	for v, enc := range cases {
		assert.Equal(t, enc, encodeCompactU16(v), "encode %d", v)
		got, n, err := decodeCompactU16(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(enc), n)
	}

	_, _, err := decodeCompactU16([]byte{0x80})
	assert.Error(t, err)
	_, _, err = decodeCompactU16([]byte{0xff, 0xff, 0x04})
	assert.Error(t, err, "overflow")
}

func TestBuildTransfer_Layout(t *testing.T) {
	from, err := NewKeypair()
	require.NoError(t, err)
	to, err := NewKeypair()
	require.NoError(t, err)

	tx, err := BuildTransfer(from, to.PublicKey(), 1_000_000, testBlockhash)
	require.NoError(t, err)

	msg := tx.Message
	assert.Equal(t, []byte{1, 0, 1}, msg[:3], "header")
	assert.Equal(t, byte(3), msg[3], "account count")
	fromKey := from.PublicKey()
	toKey := to.PublicKey()
	assert.Equal(t, fromKey[:], msg[4:36])
	assert.Equal(t, toKey[:], msg[36:68])
	assert.Equal(t, make([]byte, 32), msg[68:100], "system program")
	hash, _ := base58.Decode(testBlockhash)
	assert.Equal(t, hash, msg[100:132])

	ix := msg[132:]
	assert.Equal(t, []byte{1, 2, 2, 0, 1, 12}, ix[:6])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(ix[6:10]))
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(ix[10:18]))
	assert.Len(t, ix, 18)

	assert.True(t, ed25519.Verify(ed25519.PublicKey(fromKey[:]), msg, tx.Signatures[0][:]))
}

func TestParseTransaction_RoundTrip(t *testing.T) {
	from, _ := NewKeypair()
	to, _ := NewKeypair()
	tx, err := BuildTransfer(from, to.PublicKey(), 42, testBlockhash)
	require.NoError(t, err)

	raw := tx.Serialize()
	parsed, err := DecodeTransaction(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	assert.False(t, parsed.Versioned)
	assert.Equal(t, MessageHeader{1, 0, 1}, parsed.Header)
	assert.Equal(t, []PublicKey{from.PublicKey(), to.PublicKey(), SystemProgramID}, parsed.AccountKeys)
	assert.Equal(t, raw, parsed.Serialize())

	sig, err := SignatureOf(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), sig)
	assert.Equal(t, base58.Encode(tx.Signatures[0][:]), sig)
}

// unsignedVersioned builds a v0 message with an empty signature slot, the
// shape returned by swap builders.
func unsignedVersioned(signer PublicKey, extra PublicKey) []byte {
	msg := []byte{versionPrefix, 1, 0, 1, 2}
	msg = append(msg, signer[:]...)
	msg = append(msg, extra[:]...)
	msg = append(msg, make([]byte, 32)...) // blockhash
	msg = append(msg, 0)                   // no instructions
	msg = append(msg, 0)                   // no lookup tables

	raw := []byte{1}
	raw = append(raw, make([]byte, SignatureSize)...)
	return append(raw, msg...)
}

func TestTransaction_SignVersioned(t *testing.T) {
	kp, _ := NewKeypair()
	raw := unsignedVersioned(kp.PublicKey(), SystemProgramID)

	tx, err := ParseTransaction(raw)
	require.NoError(t, err)
	assert.True(t, tx.Versioned)
	require.NoError(t, tx.Sign(kp))

	assert.True(t, ed25519.Verify(ed25519.PublicKey(kp.PublicKey().Bytes()), tx.Message, tx.Signatures[0][:]))
	assert.Equal(t, raw[1+SignatureSize:], tx.Serialize()[1+SignatureSize:], "message bytes unchanged")

	stranger, _ := NewKeypair()
	assert.Error(t, tx.Sign(stranger))
}

func TestParseTransaction_Malformed(t *testing.T) {
	kp, _ := NewKeypair()
	raw := unsignedVersioned(kp.PublicKey(), SystemProgramID)

	for name, b := range map[string][]byte{
		"empty":           {},
		"short sigs":      raw[:20],
		"no message":      raw[:1+SignatureSize],
		"truncated keys":  raw[:1+SignatureSize+10],
		"slot count diff": append([]byte{2}, raw[1:]...),
	} {
		_, err := ParseTransaction(b)
		assert.Error(t, err, name)
	}
}
