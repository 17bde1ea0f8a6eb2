package ekehi_test

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_AddressRoundTrip(t *testing.T) {
	t.Log("Given the need to encode and validate addresses.")
	{
		for testID := 0; testID < 10; testID++ {
			payload := make([]byte, 20)
			if _, err := rand.Read(payload); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a payload: %v", failed, testID, err)
			}

			address, err := ekehi.EncodeAddress(payload)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to encode the payload: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to encode the payload.", success, testID)

			if len(address) != 51 {
				t.Errorf("\t%s\tTest %d:\tShould produce a 51 character address, got %d.", failed, testID, len(address))
			} else {
				t.Logf("\t%s\tTest %d:\tShould produce a 51 character address.", success, testID)
			}

			if !ekehi.ValidateAddress(address) {
				t.Errorf("\t%s\tTest %d:\tShould validate the encoded address.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould validate the encoded address.", success, testID)
			}

			// Corrupt one character of the checksum.
			corrupted := address[:len(address)-1] + flipHex(address[len(address)-1])
			if ekehi.ValidateAddress(corrupted) {
				t.Errorf("\t%s\tTest %d:\tShould reject a corrupted checksum.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a corrupted checksum.", success, testID)
			}
		}
	}
}

func Test_AddressValidation(t *testing.T) {
	type table struct {
		name    string
		address string
		valid   bool
	}

	tt := []table{
		{name: "coinbase", address: "00", valid: true},
		{name: "empty", address: "", valid: false},
		{name: "bad prefix", address: "XKH" + strings.Repeat("0", 48), valid: false},
		{name: "short", address: "EKH00", valid: false},
		{name: "not hex", address: "EKH" + strings.Repeat("z", 48), valid: false},
		{name: "bad checksum", address: "EKH" + strings.Repeat("0", 48), valid: false},
		{name: "faucet token", address: "FAUCET", valid: false},
	}

	t.Log("Given the need to validate malformed addresses.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				if got := ekehi.ValidateAddress(tst.address); got != tst.valid {
					t.Errorf("\t%s\tTest %d:\tShould get %t for %q, got %t.", failed, testID, tst.valid, tst.address, got)
				} else {
					t.Logf("\t%s\tTest %d:\tShould get %t for %q.", success, testID, tst.valid, tst.address)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_DeriveAddress(t *testing.T) {
	t.Log("Given the need to derive addresses from private keys.")
	{
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to generate a key: %v", failed, err)
		}

		address, err := ekehi.DeriveAddress(key)
		if err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to derive an address: %v", failed, err)
		}
		t.Logf("\t%s\tTest 0:\tShould be able to derive an address.", success)

		if !ekehi.ValidateAddress(address) {
			t.Errorf("\t%s\tTest 0:\tShould derive a valid address.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould derive a valid address.", success)
		}

		again, _ := ekehi.DeriveAddress(key)
		if address != again {
			t.Errorf("\t%s\tTest 0:\tShould derive deterministically.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould derive deterministically.", success)
		}

		if _, err := ekehi.DeriveAddress(key[:16]); err == nil {
			t.Errorf("\t%s\tTest 0:\tShould reject a short key.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould reject a short key.", success)
		}
	}
}

func Test_ReservedSenders(t *testing.T) {
	if !ekehi.IsReservedSender(ekehi.CoinbaseSender) || !ekehi.IsReservedSender(ekehi.SenderFaucet) || !ekehi.IsReservedSender(ekehi.SenderEcosystem) {
		t.Errorf("\t%s\tShould recognize all reserved senders.", failed)
	} else {
		t.Logf("\t%s\tShould recognize all reserved senders.", success)
	}

	if ekehi.IsSystemSender(ekehi.CoinbaseSender) {
		t.Errorf("\t%s\tShould not treat the coinbase token as a system sender.", failed)
	} else {
		t.Logf("\t%s\tShould not treat the coinbase token as a system sender.", success)
	}
}

// flipHex swaps a hex character for a different one.
func flipHex(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}
