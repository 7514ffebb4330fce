package domain

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

// HexBytes is a byte slice serialized as a hex string, so binary payloads
// survive the textual encoding of the ephemeral store.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// SealedSecret is an encrypted secret with its initialization vector.
type SealedSecret struct {
	Ciphertext HexBytes `json:"ciphertext"`
	IV         HexBytes `json:"iv"`
}

// Wallet is the durable account record of a user.
type Wallet struct {
	UserID          string       `json:"userId"`
	PublicKey       string       `json:"publicKey"`
	EncryptedSecret SealedSecret `json:"encryptedSecret"`
	PasskeyHash     string       `json:"-"`
	SlippageBps     uint32       `json:"slippageBps"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// Slippage returns the wallet's slippage or the default when unset.
func (w *Wallet) Slippage() uint32 {
	if w.SlippageBps == 0 {
		return DefaultSlippageBps
	}
	return w.SlippageBps
}
