// Package keystore reads the accounts folder and maps the key files it
// finds to their derived addresses. The configured miner name selects the
// key whose address receives the coinbase.
package keystore

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/ethereum/go-ethereum/crypto"
)

// keyExtension is carried by every key file in the accounts folder.
const keyExtension = ".ecdsa"

// Keystore maintains the named accounts found in the accounts folder.
type Keystore struct {
	root      string
	addresses map[string]string
}

// New constructs a keystore from the key files under the root folder.
func New(root string) (*Keystore, error) {
	ks := Keystore{
		root:      root,
		addresses: make(map[string]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != keyExtension {
			return nil
		}

		address, err := deriveFromFile(fileName)
		if err != nil {
			return err
		}

		ks.addresses[strings.TrimSuffix(path.Base(fileName), keyExtension)] = address

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ks, nil
}

// Address returns the derived address for the named account.
func (ks *Keystore) Address(name string) (string, error) {
	address, exists := ks.addresses[name]
	if !exists {
		return "", fmt.Errorf("account %q not found in %s", name, ks.root)
	}

	return address, nil
}

// Create generates a new key file for the named account and returns the
// derived address.
func (ks *Keystore) Create(name string) (string, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}

	fileName := filepath.Join(ks.root, name+keyExtension)
	if err := crypto.SaveECDSA(fileName, privateKey); err != nil {
		return "", err
	}

	address, err := ekehi.DeriveAddress(crypto.FromECDSA(privateKey))
	if err != nil {
		return "", err
	}

	ks.addresses[name] = address

	return address, nil
}

// Copy returns the map of names and addresses.
func (ks *Keystore) Copy() map[string]string {
	cpy := make(map[string]string, len(ks.addresses))
	for name, address := range ks.addresses {
		cpy[name] = address
	}

	return cpy
}

// =============================================================================

// DeriveAddressFromFile loads a key file and derives its address.
func DeriveAddressFromFile(fileName string) (string, error) {
	return deriveFromFile(fileName)
}

func deriveFromFile(fileName string) (string, error) {
	privateKey, err := crypto.LoadECDSA(fileName)
	if err != nil {
		return "", err
	}

	return ekehi.DeriveAddress(crypto.FromECDSA(privateKey))
}
