package keystore_test

import (
	"testing"

	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/ekehi/blockchain/foundation/keystore"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_CreateAndReload(t *testing.T) {
	t.Log("Given the need to create and reload named keys.")
	{
		dir := t.TempDir()

		ks, err := keystore.New(dir)
		if err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to open an empty keystore: %v", failed, err)
		}
		t.Logf("\t%s\tTest 0:\tShould be able to open an empty keystore.", success)

		if _, err := ks.Address("miner1"); err == nil {
			t.Errorf("\t%s\tTest 0:\tShould not find an account before creation.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould not find an account before creation.", success)
		}

		address, err := ks.Create("miner1")
		if err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to create an account: %v", failed, err)
		}
		t.Logf("\t%s\tTest 0:\tShould be able to create an account.", success)

		if !ekehi.ValidateAddress(address) {
			t.Errorf("\t%s\tTest 0:\tShould derive a valid address, got %q.", failed, address)
		} else {
			t.Logf("\t%s\tTest 0:\tShould derive a valid address.", success)
		}

		// A fresh keystore over the same folder must resolve the same
		// address from the key file.
		ks2, err := keystore.New(dir)
		if err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to reload the keystore: %v", failed, err)
		}

		reloaded, err := ks2.Address("miner1")
		if err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould find the account after reload: %v", failed, err)
		}
		if reloaded != address {
			t.Errorf("\t%s\tTest 0:\tShould derive the same address, got %q exp %q.", failed, reloaded, address)
		} else {
			t.Logf("\t%s\tTest 0:\tShould derive the same address.", success)
		}
	}
}
