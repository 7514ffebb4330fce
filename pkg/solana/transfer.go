package solana

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// systemTransfer is the SystemProgram instruction index of Transfer.
const systemTransfer uint32 = 2

// BuildTransfer returns a signed legacy transaction moving lamports from
// the keypair to recipient.
func BuildTransfer(from *Keypair, to PublicKey, lamports uint64, recentBlockhash string) (*Transaction, error) {
	hash, err := base58.Decode(recentBlockhash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", recentBlockhash)
	}
	fromKey := from.PublicKey()
	if fromKey == to {
		return nil, fmt.Errorf("transfer to self")
	}

	var msg bytes.Buffer
	// 1 signer, 0 readonly signed, 1 readonly unsigned (the program).
	msg.Write([]byte{1, 0, 1})
	msg.Write(encodeCompactU16(3))
	msg.Write(fromKey[:])
	msg.Write(to[:])
	msg.Write(SystemProgramID[:])
	msg.Write(hash)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg.Write(encodeCompactU16(1))
	msg.WriteByte(2)
	msg.Write(encodeCompactU16(2))
	msg.Write([]byte{0, 1})
	msg.Write(encodeCompactU16(len(data)))
	msg.Write(data)

	tx := &Transaction{
		Signatures:  make([][SignatureSize]byte, 1),
		Message:     msg.Bytes(),
		Header:      MessageHeader{1, 0, 1},
		AccountKeys: []PublicKey{fromKey, to, SystemProgramID},
	}
	if err := tx.Sign(from); err != nil {
		return nil, err
	}
	return tx, nil
}
