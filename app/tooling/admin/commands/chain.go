package commands

import (
	"fmt"
	"io"

	"github.com/chainlite/node/foundation/blockchain/database"
)

// Chain prints every block in storage and reports whether the links and
// proofs of the chain hold at the specified difficulty.
func Chain(w io.Writer, strg database.Storage, difficulty int) error {
	blocks, err := strg.LoadChain()
	if err != nil {
		return err
	}

	if len(blocks) == 0 {
		fmt.Fprintln(w, "storage is empty")
		return nil
	}

	for _, block := range blocks {
		fmt.Fprintf(w, "Block %d  Hash: %s  Prev: %s  Proof: %d  Txs: %d\n",
			block.Index, block.Hash, block.PreviousHash(), block.Proof, len(block.Transactions))
	}

	if err := database.ValidateChain(blocks, difficulty); err != nil {
		fmt.Fprintf(w, "\nchain INVALID at difficulty %d: %s\n", difficulty, err)
		return nil
	}

	fmt.Fprintf(w, "\nchain valid: length[%d] txs[%d]\n", len(blocks), database.TotalTransactions(blocks))

	return nil
}
