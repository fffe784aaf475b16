// Package disk implements the ability to read and write blocks to disk
// writing each block to a separate file.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"sync"

	"github.com/chainlite/node/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the database.Storage
// interface.
type Disk struct {
	mu     sync.RWMutex
	dbPath string
}

// New constructs a Disk value for use. A chain left aside by an interrupted
// replace is restored when the block directory is missing.
func New(dbPath string) (*Disk, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Stat(dbPath + ".old"); err == nil {
			if err := os.Rename(dbPath+".old", dbPath); err != nil {
				return nil, fmt.Errorf("restoring chain: %w", err)
			}
		}
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each now block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// LoadChain reads every block from disk starting with block number 1.
func (d *Disk) LoadChain() ([]database.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.loadChain()
}

// AppendBlock takes the specified block and stores it on disk in a
// file labeled with the block number.
func (d *Disk) AppendBlock(block database.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.getPath(d.dbPath, block.Index)); err == nil {
		return fmt.Errorf("block %d already exists", block.Index)
	}

	if block.Index > 1 {
		if _, err := os.Stat(d.getPath(d.dbPath, block.Index-1)); err != nil {
			return fmt.Errorf("block is out of order, missing parent %d: %w", block.Index-1, err)
		}
	}

	return d.write(d.dbPath, block)
}

// ReplaceChain writes the new chain into a staging directory and then
// swaps it in for the current one. The current chain is moved aside until
// the swap is done so a block directory exists at every point.
func (d *Disk) ReplaceChain(blocks []database.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	staging := d.dbPath + ".staging"
	old := d.dbPath + ".old"

	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return err
	}

	for _, block := range blocks {
		if err := d.write(staging, block); err != nil {
			os.RemoveAll(staging)
			return err
		}
	}

	if err := os.RemoveAll(old); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(d.dbPath, old); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("moving chain aside: %w", err)
	}

	if err := os.Rename(staging, d.dbPath); err != nil {
		if rerr := os.Rename(old, d.dbPath); rerr != nil {
			return fmt.Errorf("swapping chain: %w, restoring: %s", err, rerr)
		}
		os.RemoveAll(staging)
		return fmt.Errorf("swapping chain: %w", err)
	}

	return os.RemoveAll(old)
}

// QueryBlockByHeight returns the block stored for the specified index.
func (d *Disk) QueryBlockByHeight(index uint64) (database.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	block, err := d.getBlock(index)
	if errors.Is(err, fs.ErrNotExist) {
		return database.Block{}, database.ErrNotFound
	}

	return block, err
}

// QueryBlockByHash walks the chain looking for the block with the
// specified hash.
func (d *Disk) QueryBlockByHash(hash string) (database.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	iter := d.forEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return database.Block{}, err
		}
		if block.Hash == hash {
			return block, nil
		}
	}

	return database.Block{}, database.ErrNotFound
}

// QueryTransactionsByAddress returns the confirmed transactions for the
// address, newest first. ErrNotFound is returned when nothing matches.
func (d *Disk) QueryTransactionsByAddress(address string, limit int, before int64) ([]database.BlockTx, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blocks, err := d.loadChain()
	if err != nil {
		return nil, err
	}

	txs := database.FilterTransactions(blocks, address, limit, before)
	if len(txs) == 0 {
		return nil, database.ErrNotFound
	}

	return txs, nil
}

// =============================================================================

func (d *Disk) loadChain() ([]database.Block, error) {
	var blocks []database.Block

	iter := d.forEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

func (d *Disk) write(dir string, block database.Block) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return err
	}

	// Create a new file for this block and name it based on the block number.
	f, err := os.OpenFile(d.getPath(dir, block.Index), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	// Write the new block to disk.
	if _, err := f.Write(data); err != nil {
		return err
	}

	return f.Sync()
}

// getBlock locates and returns the contents of the specified block by number.
func (d *Disk) getBlock(num uint64) (database.Block, error) {
	f, err := os.OpenFile(d.getPath(d.dbPath, num), os.O_RDONLY, 0600)
	if err != nil {
		return database.Block{}, err
	}
	defer f.Close()

	var block database.Block
	if err := json.NewDecoder(f).Decode(&block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// forEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (d *Disk) forEach() *Iterator {
	return &Iterator{disk: d}
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(dir string, blockNum uint64) string {
	name := strconv.FormatUint(blockNum, 10)
	return path.Join(dir, fmt.Sprintf("%s.json", name))
}

// =============================================================================

// Iterator represents the iteration implementation for walking
// through and reading blocks on disk.
type Iterator struct {
	disk    *Disk  // Access to the disk storage API.
	current uint64 // Current block number being iterated over.
	eoc     bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (it *Iterator) Next() (database.Block, error) {
	if it.eoc {
		return database.Block{}, errors.New("end of chain")
	}

	it.current++
	block, err := it.disk.getBlock(it.current)
	if errors.Is(err, fs.ErrNotExist) {
		it.eoc = true
		return database.Block{}, nil
	}

	return block, err
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}
