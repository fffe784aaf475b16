package nameservice_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chainlite/node/foundation/nameservice"
	"github.com/chainlite/node/foundation/validate"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_NameService(t *testing.T) {
	t.Log("Given the need to name the addresses of local key files.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the folder holds a key file.", testID)
		{
			root := t.TempDir()

			pk, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("generating key: %s", err)
			}
			if err := crypto.SaveECDSA(filepath.Join(root, "kennedy.ecdsa"), pk); err != nil {
				t.Fatalf("saving key: %s", err)
			}
			os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0600)

			ns, err := nameservice.New(root)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould load the folder: %s", failed, testID, err)
			}

			address := crypto.PubkeyToAddress(pk.PublicKey).Hex()
			if ns.Lookup(address) != "kennedy" || len(ns.Copy()) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould name the address: %v", failed, testID, ns.Copy())
			}
			t.Logf("\t%s\tTest %d:\tShould name the address.", success, testID)

			if !validate.IsAddress(address) {
				t.Fatalf("\t%s\tTest %d:\tShould produce a valid ledger address: %s", failed, testID, address)
			}
			t.Logf("\t%s\tTest %d:\tShould produce a valid ledger address.", success, testID)

			if ns.Lookup("0xabc123456789") != "0xabc123456789" {
				t.Fatalf("\t%s\tTest %d:\tShould return unknown addresses as is.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould return unknown addresses as is.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the folder doesn't exist.", testID)
		{
			ns, err := nameservice.New(filepath.Join(t.TempDir(), "missing"))
			if err != nil || len(ns.Copy()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould get an empty name service: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get an empty name service.", success, testID)
		}
	}
}
