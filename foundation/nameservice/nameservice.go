// Package nameservice resolves account addresses to display names. Names
// come from the wallet key folder and from users registered with the node.
// A key file name always wins over a registered username.
package nameservice

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bitsim/node/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of accounts for name lookup.
type NameService struct {
	mu       sync.RWMutex
	accounts map[string]string
	keyed    map[string]bool
}

// New constructs a name service with the accounts found in the key folder.
// A missing folder produces an empty name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[string]string),
		keyed:    make(map[string]bool),
	}

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return &ns, nil
		}
		return nil, err
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
			return err
		}

		address := signature.PublicKeyToAddress(privateKey.PublicKey)
		ns.accounts[address] = strings.TrimSuffix(path.Base(fileName), ".ecdsa")
		ns.keyed[address] = true

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Add records the name for an address unless a key file already names it.
// It reports whether the name was recorded.
func (ns *NameService) Add(address string, name string) bool {
	if address == "" || name == "" {
		return false
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.keyed[address] {
		return false
	}

	ns.accounts[address] = name
	return true
}

// Lookup returns the name for the specified address, or the address itself
// when it has no name.
func (ns *NameService) Lookup(address string) string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	name, exists := ns.accounts[address]
	if !exists {
		return address
	}
	return name
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[string]string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	cpy := make(map[string]string, len(ns.accounts))
	for address, name := range ns.accounts {
		cpy[address] = name
	}
	return cpy
}
