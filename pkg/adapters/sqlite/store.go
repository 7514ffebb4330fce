// Package sqlite provides durable storage for wallets and the trade log
// on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	_ "modernc.org/sqlite"
)

// Store implements ports.WalletStore and ports.TradeLog.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// The path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database otherwise.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		public_key TEXT NOT NULL,
		secret_ciphertext BLOB NOT NULL,
		secret_iv BLOB NOT NULL,
		passkey_hash TEXT NOT NULL DEFAULT '',
		slippage_bps INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		token_mint TEXT NOT NULL,
		txid TEXT NOT NULL DEFAULT '',
		in_amount TEXT NOT NULL,
		out_amount TEXT NOT NULL,
		outcome TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, public_key, secret_ciphertext, secret_iv,
		       passkey_hash, slippage_bps, created_at
		FROM wallets WHERE user_id = ?`, userID)

	var (
		w          domain.Wallet
		ciphertext []byte
		iv         []byte
		slippage   int64
		createdAt  int64
	)
	err := row.Scan(&w.UserID, &w.PublicKey, &ciphertext, &iv, &w.PasskeyHash, &slippage, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan wallet row: %w", err)
	}

	w.EncryptedSecret = domain.SealedSecret{Ciphertext: ciphertext, IV: iv}
	w.SlippageBps = uint32(slippage)
	w.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &w, nil
}

func (s *Store) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, public_key, secret_ciphertext, secret_iv, passkey_hash, slippage_bps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			public_key = excluded.public_key,
			secret_ciphertext = excluded.secret_ciphertext,
			secret_iv = excluded.secret_iv,
			passkey_hash = excluded.passkey_hash,
			slippage_bps = excluded.slippage_bps`,
		w.UserID, w.PublicKey, blob(w.EncryptedSecret.Ciphertext), blob(w.EncryptedSecret.IV),
		w.PasskeyHash, int64(w.SlippageBps), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

// blob keeps empty secrets out of NOT NULL columns as NULL.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func (s *Store) DeleteWallet(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wallets WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return nil
}

func (s *Store) SetSlippage(ctx context.Context, userID string, bps uint32) error {
	res, err := s.db.ExecContext(ctx, `UPDATE wallets SET slippage_bps = ? WHERE user_id = ?`, int64(bps), userID)
	if err != nil {
		return fmt.Errorf("set slippage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set slippage: %w", err)
	}
	if n == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// Record appends rec to the trade log. Amounts are stored as decimal
// text because they may exceed the signed 64-bit range.
func (s *Store) Record(ctx context.Context, rec domain.TradeRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (user_id, direction, token_mint, txid, in_amount, out_amount, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, string(rec.Direction), rec.TokenMint, rec.TxID,
		strconv.FormatUint(rec.InAmount, 10), strconv.FormatUint(rec.OutAmount, 10),
		rec.Outcome, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

// List returns the newest records of userID first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, direction, token_mint, txid, in_amount, out_amount, outcome, created_at
		FROM trades WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var (
			rec       domain.TradeRecord
			direction string
			in, outA  string
			createdAt int64
		)
		if err := rows.Scan(&rec.UserID, &direction, &rec.TokenMint, &rec.TxID, &in, &outA, &rec.Outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		rec.Direction = domain.Direction(direction)
		rec.InAmount, _ = strconv.ParseUint(in, 10, 64)
		rec.OutAmount, _ = strconv.ParseUint(outA, 10, 64)
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
