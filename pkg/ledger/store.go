// Package ledger persists the last known collection membership of each
// wallet address in a local SQLite database.
//
// Each address has at most one row. Upsert inserts the row on first sight and
// overwrites has_nft afterwards; rows are never deleted. Upsert does not
// return an error: failures come back as an UpsertResult so that callers
// decide explicitly whether a lost write matters to them.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/maybehotcarl/nftbot/pkg/ledger/migrations"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "wallets.db"

// ErrNotFound is returned by Get for an address that was never recorded.
var ErrNotFound = errors.New("wallet not found")

// WalletRecord is one row of the wallets table.
type WalletRecord struct {
	ID      int64  `json:"id"`
	Address string `json:"wallet_address"`
	HasNFT  bool   `json:"has_nft"`
}

// FailureReason tags why an upsert did not reach the database.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonUnavailable
	ReasonCanceled
	ReasonWriteFailed
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnavailable:
		return "unavailable"
	case ReasonCanceled:
		return "canceled"
	default:
		return "write-failed"
	}
}

// UpsertResult reports the outcome of Upsert.
type UpsertResult struct {
	Reason FailureReason
	Err    error
}

// OK reports whether the write was committed.
func (r UpsertResult) OK() bool { return r.Reason == ReasonNone }

// Store provides SQLite-backed persistence for wallet membership.
type Store struct {
	db     *sql.DB
	log    *zap.Logger
	closed atomic.Bool
}

// Open opens (creating if needed) dir/wallets.db and applies the schema.
// dir itself is created when absent.
func Open(ctx context.Context, dir string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(filepath.Clean(dir), DBFileName)
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, log: logger.Named("ledger")}
	s.log.Info("database initialized", zap.String("path", path))
	return s, nil
}

// Close closes the underlying database. Later upserts report ReasonUnavailable.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.closed.Store(true)
	return s.db.Close()
}

// Upsert records hasNFT for address, inserting the row or overwriting
// has_nft in a single statement. Concurrent upserts of one address resolve
// last-write-wins under SQLite's locking. Failures are logged and returned
// in the result, never as a panic or error.
func (s *Store) Upsert(ctx context.Context, address string, hasNFT bool) UpsertResult {
	if s == nil || s.db == nil || s.closed.Load() {
		return s.fail(address, ReasonUnavailable, errors.New("store is not open"))
	}
	if err := ctx.Err(); err != nil {
		return s.fail(address, ReasonCanceled, err)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO wallets (wallet_address, has_nft)
VALUES (?, ?)
ON CONFLICT(wallet_address) DO UPDATE SET has_nft = excluded.has_nft`,
		address, boolToInt(hasNFT),
	)
	if err != nil {
		reason := ReasonWriteFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonCanceled
		}
		return s.fail(address, reason, fmt.Errorf("upsert wallet: %w", err))
	}
	return UpsertResult{}
}

func (s *Store) fail(address string, reason FailureReason, err error) UpsertResult {
	logger := zap.NewNop()
	if s != nil && s.log != nil {
		logger = s.log
	}
	logger.Error("failed to save wallet",
		zap.String("address", address),
		zap.Stringer("reason", reason),
		zap.Error(err),
	)
	return UpsertResult{Reason: reason, Err: err}
}

// Get returns the record for address, or ErrNotFound.
func (s *Store) Get(ctx context.Context, address string) (WalletRecord, error) {
	if s == nil || s.db == nil {
		return WalletRecord{}, fmt.Errorf("storage is not configured")
	}
	var (
		rec    WalletRecord
		hasNFT sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, wallet_address, has_nft FROM wallets WHERE wallet_address = ?`, address,
	).Scan(&rec.ID, &rec.Address, &hasNFT)
	if errors.Is(err, sql.ErrNoRows) {
		return WalletRecord{}, ErrNotFound
	}
	if err != nil {
		return WalletRecord{}, fmt.Errorf("get wallet: %w", err)
	}
	rec.HasNFT = hasNFT.Valid && hasNFT.Int64 != 0
	return rec, nil
}

// List returns every record ordered by id.
func (s *Store) List(ctx context.Context) ([]WalletRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, wallet_address, has_nft FROM wallets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []WalletRecord
	for rows.Next() {
		var (
			rec    WalletRecord
			hasNFT sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.Address, &hasNFT); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		rec.HasNFT = hasNFT.Valid && hasNFT.Int64 != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
