package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/validate"
)

// Transactions prints the confirmed transactions an address took part in,
// newest first.
func Transactions(w io.Writer, strg database.Storage, address string, limit int) error {
	if !validate.IsAddress(address) {
		return fmt.Errorf("invalid address %q", address)
	}

	trans, err := strg.QueryTransactionsByAddress(address, limit, 0)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fmt.Fprintf(w, "no transactions for %s\n", address)
			return nil
		}
		return err
	}

	for _, tx := range trans {
		fmt.Fprintf(w, "Block: %d  Hash: %s  From: %s  To: %s  Amount: %v  Time: %d\n",
			tx.BlockIndex, tx.Hash, tx.Sender, tx.Recipient, tx.Amount, tx.TimeStamp)
	}

	return nil
}
