package mempool_test

import (
	"errors"
	"testing"

	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/mempool"
	"github.com/chainlite/node/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func tx(amount float64) database.Tx {
	return database.Tx{
		Sender:    "0xabc123456789",
		Recipient: "0xdef987654321",
		Amount:    amount,
		Signature: "sig",
		TimeStamp: 1712345678901,
	}
}

func hashes(txs []database.Tx) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Hash
	}
	return out
}

func equal(got []database.Tx, exp []string) bool {
	if len(got) != len(exp) {
		return false
	}
	for i := range got {
		if got[i].Hash != exp[i] {
			return false
		}
	}
	return true
}

func Test_Submit(t *testing.T) {
	t.Log("Given the need to accept transactions into the mempool.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen submitting a valid transaction.", testID)
		{
			mp := mempool.New()

			in := tx(10.5)
			in.Hash = "caller supplied"

			hash, err := mp.Submit(in)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to submit.", success, testID)

			if len(hash) != 64 || hash != in.ComputeHash() {
				t.Fatalf("\t%s\tTest %d:\tShould get the recomputed 64 character hash: %s", failed, testID, hash)
			}
			t.Logf("\t%s\tTest %d:\tShould get the recomputed 64 character hash.", success, testID)

			if mp.Count() != 1 || mp.Copy()[0].Hash != hash {
				t.Fatalf("\t%s\tTest %d:\tShould hold exactly one entry.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hold exactly one entry.", success, testID)

			if _, err := mp.Submit(tx(10.5)); !errors.Is(err, mempool.ErrDuplicateTransaction) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a duplicate: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a duplicate.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen submitting a zero amount.", testID)
		{
			mp := mempool.New()

			_, err := mp.Submit(tx(0))
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest %d:\tShould get a validation error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get a validation error.", success, testID)

			if mp.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the mempool unchanged.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the mempool unchanged.", success, testID)
		}
	}
}

func Test_Drain(t *testing.T) {
	t.Log("Given the need to drain the mempool for mining.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen draining, committing and restoring.", testID)
		{
			mp := mempool.New()

			var exp []string
			for _, amount := range []float64{1, 2, 3} {
				hash, _ := mp.Submit(tx(amount))
				exp = append(exp, hash)
			}

			drained := mp.Drain()
			if !equal(drained, exp) {
				t.Fatalf("\t%s\tTest %d:\tShould drain in arrival order.", failed, testID)
			}
			if mp.Count() != 0 || len(mp.Copy()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave nothing pending after a drain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould drain everything in arrival order.", success, testID)

			if _, err := mp.Submit(tx(1)); !errors.Is(err, mempool.ErrDuplicateTransaction) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a duplicate of an in-flight transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a duplicate of an in-flight transaction.", success, testID)

			late, _ := mp.Submit(tx(4))
			for _, trn := range drained {
				if trn.Hash == late {
					t.Fatalf("\t%s\tTest %d:\tShould not include a later submission in the drain.", failed, testID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould not include a later submission in the drain.", success, testID)

			mp.Restore(drained)
			if !equal(mp.Copy(), append(exp, late)) {
				t.Fatalf("\t%s\tTest %d:\tShould restore ahead of newer arrivals: %v", failed, testID, hashes(mp.Copy()))
			}
			t.Logf("\t%s\tTest %d:\tShould restore ahead of newer arrivals.", success, testID)

			drained = mp.Drain()
			mp.Commit(drained)
			if _, err := mp.Submit(tx(1)); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould forget committed transactions: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould forget committed transactions.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen removing and truncating.", testID)
		{
			mp := mempool.New()

			h1, _ := mp.Submit(tx(1))
			h2, _ := mp.Submit(tx(2))
			h3, _ := mp.Submit(tx(3))

			mp.Remove([]string{h2, "unknown"})
			if !equal(mp.Copy(), []string{h1, h3}) {
				t.Fatalf("\t%s\tTest %d:\tShould remove only the named transactions.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove only the named transactions.", success, testID)

			mp.Truncate()
			if mp.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould be empty after truncate.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be empty after truncate.", success, testID)
		}
	}
}
