// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the addresses of the local key files.
package nameservice

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	accounts map[string]string
}

// New constructs a Name Service with addresses from the key files in the
// root folder. A missing folder results in an empty name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[string]string),
	}

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return &ns, nil
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("%s: %w", fileName, err)
		}

		address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
		ns.accounts[address] = strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified address or the address itself
// when there is no name for it.
func (ns *NameService) Lookup(address string) string {
	name, exists := ns.accounts[address]
	if !exists {
		return address
	}
	return name
}

// Copy returns a copy of the map of names and addresses.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.accounts))
	for address, name := range ns.accounts {
		cpy[address] = name
	}
	return cpy
}
