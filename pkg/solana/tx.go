package solana

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// versionPrefix marks a versioned message; the low bits carry the version.
const versionPrefix = 0x80

var errShortBuffer = errors.New("transaction truncated")

// MessageHeader is the 3-byte header of a transaction message.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// Transaction is a signature list followed by the message bytes.
type Transaction struct {
	Signatures [][SignatureSize]byte
	Message    []byte

	Header      MessageHeader
	AccountKeys []PublicKey
	Versioned   bool
}

// DecodeTransaction parses a base64 wire transaction.
func DecodeTransaction(b64 string) (*Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	return ParseTransaction(raw)
}

// ParseTransaction parses a wire transaction.
func ParseTransaction(raw []byte) (*Transaction, error) {
	n, off, err := decodeCompactU16(raw)
	if err != nil {
		return nil, err
	}
	if len(raw) < off+n*SignatureSize {
		return nil, errShortBuffer
	}
	tx := &Transaction{Signatures: make([][SignatureSize]byte, n)}
	for i := range tx.Signatures {
		copy(tx.Signatures[i][:], raw[off:off+SignatureSize])
		off += SignatureSize
	}
	tx.Message = bytes.Clone(raw[off:])
	if err := tx.parseMessage(); err != nil {
		return nil, err
	}
	if int(tx.Header.NumRequiredSignatures) != len(tx.Signatures) {
		return nil, fmt.Errorf("transaction has %d signature slots, message requires %d",
			len(tx.Signatures), tx.Header.NumRequiredSignatures)
	}
	return tx, nil
}

func (tx *Transaction) parseMessage() error {
	msg := tx.Message
	if len(msg) == 0 {
		return errShortBuffer
	}
	if msg[0]&versionPrefix != 0 {
		tx.Versioned = true
		msg = msg[1:]
	}
	if len(msg) < 3 {
		return errShortBuffer
	}
	tx.Header = MessageHeader{msg[0], msg[1], msg[2]}
	msg = msg[3:]

	n, off, err := decodeCompactU16(msg)
	if err != nil {
		return err
	}
	if len(msg) < off+n*PublicKeySize {
		return errShortBuffer
	}
	tx.AccountKeys = make([]PublicKey, n)
	for i := range tx.AccountKeys {
		copy(tx.AccountKeys[i][:], msg[off:off+PublicKeySize])
		off += PublicKeySize
	}
	if int(tx.Header.NumRequiredSignatures) > n {
		return fmt.Errorf("message requires %d signers but lists %d accounts", tx.Header.NumRequiredSignatures, n)
	}
	return nil
}

// Sign fills the signature slot of each keypair. Every keypair must be one
// of the message's required signers.
func (tx *Transaction) Sign(signers ...*Keypair) error {
	for _, kp := range signers {
		idx := tx.signerIndex(kp.PublicKey())
		if idx < 0 {
			return fmt.Errorf("%s is not a required signer", kp.PublicKey())
		}
		tx.Signatures[idx] = kp.Sign(tx.Message)
	}
	return nil
}

func (tx *Transaction) signerIndex(pk PublicKey) int {
	for i := 0; i < int(tx.Header.NumRequiredSignatures); i++ {
		if tx.AccountKeys[i] == pk {
			return i
		}
	}
	return -1
}

// ID returns the transaction id: the base58 first signature. It is known
// before the transaction is sent.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return base58.Encode(tx.Signatures[0][:])
}

// Serialize encodes the transaction in wire format.
func (tx *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(encodeCompactU16(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		buf.Write(sig[:])
	}
	buf.Write(tx.Message)
	return buf.Bytes()
}

// SignatureOf returns the base58 first signature of a wire transaction.
func SignatureOf(raw []byte) (string, error) {
	n, off, err := decodeCompactU16(raw)
	if err != nil {
		return "", err
	}
	if n == 0 || len(raw) < off+SignatureSize {
		return "", errShortBuffer
	}
	return base58.Encode(raw[off : off+SignatureSize]), nil
}

// decodeCompactU16 reads Solana's variable-length u16: 7 bits per byte,
// high bit set on all but the last byte, at most 3 bytes.
func decodeCompactU16(b []byte) (value int, n int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errShortBuffer
		}
		value |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			if value > 0xffff {
				return 0, 0, errors.New("compact-u16 overflow")
			}
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("compact-u16 too long")
}

func encodeCompactU16(v int) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
