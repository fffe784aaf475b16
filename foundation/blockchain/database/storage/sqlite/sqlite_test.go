package sqlite_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/database/storage/sqlite"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	alice = "0xa11ce0000001"
	bob   = "0xb0b000000002"
)

func chain(n int) []database.Block {
	var blocks []database.Block
	var prev *string
	for i := 1; i <= n; i++ {
		tx, _ := database.NewTx(alice, bob, float64(i)+0.25, "sig", int64(i*1000))
		b := database.Block{
			Index:        uint64(i),
			TimeStamp:    int64(i * 1000),
			Transactions: []database.Tx{tx},
			PrevHash:     prev,
		}
		b.Hash = b.ComputeHash()
		h := b.Hash
		prev = &h
		blocks = append(blocks, b)
	}
	return blocks
}

func Test_SQLite(t *testing.T) {
	t.Log("Given the need to persist blocks in SQLite.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen appending and reopening.", testID)
		{
			path := filepath.Join(t.TempDir(), "chain.db")

			db, err := sqlite.New(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the database: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to open the database.", success, testID)

			blocks := chain(3)
			for _, b := range blocks {
				if err := db.AppendBlock(b); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to append block %d: %s", failed, testID, b.Index, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to append blocks.", success, testID)

			if err := db.AppendBlock(blocks[1]); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an out of order block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an out of order block.", success, testID)
			db.Close()

			db, err = sqlite.New(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen the database: %s", failed, testID, err)
			}
			defer db.Close()

			loaded, err := db.LoadChain()
			if err != nil || len(loaded) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould load 3 blocks: %d, %v", failed, testID, len(loaded), err)
			}
			if loaded[0].PrevHash != nil || loaded[2].Hash != blocks[2].Hash || loaded[2].ComputeHash() != blocks[2].Hash {
				t.Fatalf("\t%s\tTest %d:\tShould load the blocks unchanged.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould load the blocks unchanged.", success, testID)

			b, err := db.QueryBlockByHash(blocks[1].Hash)
			if err != nil || b.Index != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould find block 2 by hash: %v", failed, testID, err)
			}
			if _, err := db.QueryBlockByHeight(9); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNotFound for a missing height: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould query blocks by hash and height.", success, testID)

			txs, err := db.QueryTransactionsByAddress(bob, 2, 0)
			if err != nil || len(txs) != 2 || txs[0].BlockIndex != 3 || txs[0].Amount != 3.25 {
				t.Fatalf("\t%s\tTest %d:\tShould get the 2 newest transactions: %v %v", failed, testID, txs, err)
			}
			txs, _ = db.QueryTransactionsByAddress(alice, 0, 2000)
			if len(txs) != 1 || txs[0].BlockHash != blocks[0].Hash {
				t.Fatalf("\t%s\tTest %d:\tShould honor the before filter: %v", failed, testID, txs)
			}
			t.Logf("\t%s\tTest %d:\tShould query transactions by address.", success, testID)

			if _, err := db.QueryTransactionsByAddress("0xabcdef123456", 0, 0); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNotFound for an unknown address: %v", failed, testID, err)
			}
			if _, err := db.QueryTransactionsByAddress(alice, 0, 500); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNotFound when the filter excludes everything: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrNotFound when no transaction matches.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen replacing the chain.", testID)
		{
			db, err := sqlite.New(filepath.Join(t.TempDir(), "chain.db"))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the database: %s", failed, testID, err)
			}
			defer db.Close()

			for _, b := range chain(2) {
				db.AppendBlock(b)
			}

			if err := db.ReplaceChain(chain(4)); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to replace the chain: %s", failed, testID, err)
			}

			loaded, _ := db.LoadChain()
			txs, _ := db.QueryTransactionsByAddress(bob, 0, 0)
			if len(loaded) != 4 || len(txs) != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould hold only the new chain: %d blocks %d txs", failed, testID, len(loaded), len(txs))
			}
			t.Logf("\t%s\tTest %d:\tShould hold only the new chain.", success, testID)
		}
	}
}
