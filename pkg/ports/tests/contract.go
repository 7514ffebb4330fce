package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/ports"
)

// WalletStoreContractTest is a reusable test suite that verifies if an adapter complies with ports.WalletStore.
func WalletStoreContractTest(t *testing.T, store ports.WalletStore) {
	t.Helper()
	ctx := context.Background()

	wallet := &domain.Wallet{
		UserID:    "42",
		PublicKey: "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
		EncryptedSecret: domain.SealedSecret{
			Ciphertext: domain.HexBytes{0xde, 0xad, 0xbe, 0xef},
			IV:         domain.HexBytes{0x01, 0x02, 0x03},
		},
		PasskeyHash: "$2a$10$hash",
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
	}

	// 1. Missing wallet
	t.Run("GetWallet_NotFound", func(t *testing.T) {
		_, err := store.GetWallet(ctx, "nobody")
		if err != domain.ErrWalletNotFound {
			t.Fatalf("expected ErrWalletNotFound, got %v", err)
		}
	})

	// 2. Save and load
	t.Run("SaveWallet_GetWallet", func(t *testing.T) {
		if err := store.SaveWallet(ctx, wallet); err != nil {
			t.Fatalf("unexpected error saving wallet: %v", err)
		}
		got, err := store.GetWallet(ctx, wallet.UserID)
		if err != nil {
			t.Fatalf("unexpected error loading wallet: %v", err)
		}
		if got.PublicKey != wallet.PublicKey {
			t.Errorf("public key mismatch: got %q, want %q", got.PublicKey, wallet.PublicKey)
		}
		if string(got.EncryptedSecret.Ciphertext) != string(wallet.EncryptedSecret.Ciphertext) {
			t.Errorf("ciphertext mismatch: got %x", got.EncryptedSecret.Ciphertext)
		}
		if string(got.EncryptedSecret.IV) != string(wallet.EncryptedSecret.IV) {
			t.Errorf("iv mismatch: got %x", got.EncryptedSecret.IV)
		}
		if got.PasskeyHash != wallet.PasskeyHash {
			t.Errorf("passkey hash mismatch: got %q", got.PasskeyHash)
		}
		if got.Slippage() != domain.DefaultSlippageBps {
			t.Errorf("expected default slippage, got %d", got.Slippage())
		}
	})

	// 3. Slippage update
	t.Run("SetSlippage", func(t *testing.T) {
		if err := store.SetSlippage(ctx, wallet.UserID, 150); err != nil {
			t.Fatalf("unexpected error setting slippage: %v", err)
		}
		got, err := store.GetWallet(ctx, wallet.UserID)
		if err != nil {
			t.Fatalf("unexpected error loading wallet: %v", err)
		}
		if got.SlippageBps != 150 {
			t.Errorf("expected 150 bps, got %d", got.SlippageBps)
		}
		if err := store.SetSlippage(ctx, "nobody", 150); err != domain.ErrWalletNotFound {
			t.Errorf("expected ErrWalletNotFound for unknown user, got %v", err)
		}
	})

	// 4. Delete
	t.Run("DeleteWallet", func(t *testing.T) {
		if err := store.DeleteWallet(ctx, wallet.UserID); err != nil {
			t.Fatalf("unexpected error deleting wallet: %v", err)
		}
		if _, err := store.GetWallet(ctx, wallet.UserID); err != domain.ErrWalletNotFound {
			t.Errorf("expected ErrWalletNotFound after delete, got %v", err)
		}
	})
}

// TradeLogContractTest verifies that an adapter complies with ports.TradeLog.
func TradeLogContractTest(t *testing.T, log ports.TradeLog) {
	t.Helper()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	for i, tx := range []string{"tx-1", "tx-2", "tx-3"} {
		rec := domain.TradeRecord{
			UserID:    "7",
			Direction: domain.Buy,
			TokenMint: "mint",
			TxID:      tx,
			InAmount:  uint64(i + 1),
			OutAmount: uint64(10 * (i + 1)),
			Outcome:   domain.OutcomeSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := log.Record(ctx, rec); err != nil {
			t.Fatalf("unexpected error recording %s: %v", tx, err)
		}
	}

	t.Run("List_NewestFirst", func(t *testing.T) {
		recs, err := log.List(ctx, "7", 2)
		if err != nil {
			t.Fatalf("unexpected error listing: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("expected 2 records, got %d", len(recs))
		}
		if recs[0].TxID != "tx-3" || recs[1].TxID != "tx-2" {
			t.Errorf("unexpected order: %s, %s", recs[0].TxID, recs[1].TxID)
		}
	})

	t.Run("List_OtherUser", func(t *testing.T) {
		recs, err := log.List(ctx, "8", 10)
		if err != nil {
			t.Fatalf("unexpected error listing: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("expected no records, got %d", len(recs))
		}
	})
}
