// Package sqlite implements the ability to read and write blocks to a SQLite
// database file. Transactions are indexed by sender and recipient so the
// address history can be served without loading the chain.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chainlite/node/foundation/blockchain/database"

	_ "modernc.org/sqlite"
)

const maxBusyTimeoutMs = 5000

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	block_index   INTEGER PRIMARY KEY,
	hash          TEXT NOT NULL UNIQUE,
	previous_hash TEXT,
	timestamp     INTEGER NOT NULL,
	data          TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	block_index INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	hash        TEXT NOT NULL,
	sender      TEXT NOT NULL,
	recipient   TEXT NOT NULL,
	amount      REAL NOT NULL,
	signature   TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	PRIMARY KEY (block_index, position)
);
CREATE INDEX IF NOT EXISTS transactions_sender ON transactions(sender);
CREATE INDEX IF NOT EXISTS transactions_recipient ON transactions(recipient);
`

// SQLite represents the storage implementation for reading and storing
// blocks in a SQLite database. This implements the database.Storage
// interface.
type SQLite struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens or creates the database file at the specified path.
func New(filePath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(filePath)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps the pragmas below in effect for every query.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs),
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

// LoadChain reads every block ordered by index.
func (s *SQLite) LoadChain() ([]database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT data FROM blocks ORDER BY block_index`)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []database.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return blocks, rows.Err()
}

// AppendBlock stores the block and its transactions in a single
// database transaction.
func (s *SQLite) AppendBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var tip sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(block_index) FROM blocks`).Scan(&tip); err != nil {
		return fmt.Errorf("query tip: %w", err)
	}
	if uint64(tip.Int64)+1 != block.Index {
		return fmt.Errorf("block is out of order, got %d, exp %d", block.Index, tip.Int64+1)
	}

	if err := insertBlock(tx, block); err != nil {
		return err
	}

	return tx.Commit()
}

// ReplaceChain deletes the stored chain and writes the new one in a single
// database transaction.
func (s *SQLite) ReplaceChain(blocks []database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM transactions`); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM blocks`); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}

	for _, block := range blocks {
		if err := insertBlock(tx, block); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// QueryBlockByHeight returns the block at the specified index.
func (s *SQLite) QueryBlockByHeight(index uint64) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT data FROM blocks WHERE block_index = ?`, int64(index))
	return queryBlock(row)
}

// QueryBlockByHash returns the block with the specified hash.
func (s *SQLite) QueryBlockByHash(hash string) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT data FROM blocks WHERE hash = ?`, hash)
	return queryBlock(row)
}

// QueryTransactionsByAddress returns the confirmed transactions for the
// address, newest first. ErrNotFound is returned when nothing matches.
func (s *SQLite) QueryTransactionsByAddress(address string, limit int, before int64) ([]database.BlockTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// SQLite treats a negative limit as no limit.
	if limit <= 0 {
		limit = -1
	}

	const q = `
	SELECT t.block_index, b.hash, t.hash, t.sender, t.recipient, t.amount, t.signature, t.timestamp
	FROM transactions t
	JOIN blocks b ON b.block_index = t.block_index
	WHERE (t.sender = ? OR t.recipient = ?) AND (? <= 0 OR t.timestamp < ?)
	ORDER BY t.block_index DESC, t.position DESC
	LIMIT ?`

	rows, err := s.db.Query(q, address, address, before, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []database.BlockTx
	for rows.Next() {
		var btx database.BlockTx
		var index int64
		err := rows.Scan(&index, &btx.BlockHash, &btx.Hash, &btx.Sender, &btx.Recipient, &btx.Amount, &btx.Signature, &btx.TimeStamp)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		btx.BlockIndex = uint64(index)
		txs = append(txs, btx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	if len(txs) == 0 {
		return nil, database.ErrNotFound
	}

	return txs, nil
}

// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanBlock(row scanner) (database.Block, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		return database.Block{}, err
	}

	var block database.Block
	if err := json.Unmarshal([]byte(data), &block); err != nil {
		return database.Block{}, fmt.Errorf("decode block: %w", err)
	}

	return block, nil
}

func queryBlock(row *sql.Row) (database.Block, error) {
	block, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return database.Block{}, database.ErrNotFound
	}

	return block, err
}

func insertBlock(tx *sql.Tx, block database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}

	const qb = `INSERT INTO blocks (block_index, hash, previous_hash, timestamp, data) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.Exec(qb, int64(block.Index), block.Hash, block.PrevHash, block.TimeStamp, string(data)); err != nil {
		return fmt.Errorf("insert block %d: %w", block.Index, err)
	}

	const qt = `INSERT INTO transactions (block_index, position, hash, sender, recipient, amount, signature, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i, trn := range block.Transactions {
		if _, err := tx.Exec(qt, int64(block.Index), i, trn.Hash, trn.Sender, trn.Recipient, trn.Amount, trn.Signature, trn.TimeStamp); err != nil {
			return fmt.Errorf("insert transaction %s: %w", trn.Hash, err)
		}
	}

	return nil
}
