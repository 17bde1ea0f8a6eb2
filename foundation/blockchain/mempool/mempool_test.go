package mempool_test

import (
	"testing"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/ekehi/blockchain/foundation/blockchain/mempool"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func testAddress(b byte) string {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = b
	}

	address, err := ekehi.EncodeAddress(payload)
	if err != nil {
		panic(err)
	}

	return address
}

func Test_CRUD(t *testing.T) {
	t.Log("Given the need to manage pending transactions.")
	{
		mp := mempool.New()

		txs := []database.Tx{
			database.NewTx(decimal.NewFromInt(1), ekehi.SenderFaucet, testAddress(0x01), decimal.Zero),
			database.NewTx(decimal.NewFromInt(2), ekehi.SenderFaucet, testAddress(0x02), decimal.Zero),
			database.NewTx(decimal.NewFromInt(3), ekehi.SenderFaucet, testAddress(0x03), decimal.Zero),
		}

		for _, tx := range txs {
			mp.Upsert(tx)
		}

		if mp.Count() != 3 {
			t.Fatalf("\t%s\tTest 0:\tShould have 3 transactions, got %d.", failed, mp.Count())
		}
		t.Logf("\t%s\tTest 0:\tShould have 3 transactions.", success)

		// Upserting the same id must not grow the pool.
		mp.Upsert(txs[0])
		if mp.Count() != 3 {
			t.Errorf("\t%s\tTest 0:\tShould not grow on duplicate upsert, got %d.", failed, mp.Count())
		} else {
			t.Logf("\t%s\tTest 0:\tShould not grow on duplicate upsert.", success)
		}

		// Take must preserve the insertion order.
		take := mp.Take(2)
		if len(take) != 2 || take[0].TransactionID != txs[0].TransactionID || take[1].TransactionID != txs[1].TransactionID {
			t.Errorf("\t%s\tTest 0:\tShould take in insertion order.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould take in insertion order.", success)
		}

		mp.Delete(txs[1].TransactionID)
		if mp.Count() != 2 || mp.Contains(txs[1].TransactionID) {
			t.Errorf("\t%s\tTest 0:\tShould delete by id.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould delete by id.", success)
		}

		remaining := mp.Copy()
		if len(remaining) != 2 || remaining[0].TransactionID != txs[0].TransactionID || remaining[1].TransactionID != txs[2].TransactionID {
			t.Errorf("\t%s\tTest 0:\tShould keep the remaining order stable.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould keep the remaining order stable.", success)
		}

		mp.Truncate()
		if mp.Count() != 0 {
			t.Errorf("\t%s\tTest 0:\tShould truncate the pool.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould truncate the pool.", success)
		}
	}
}

func Test_DeleteConfirmed(t *testing.T) {
	t.Log("Given the need to evict transactions a block confirmed.")
	{
		mp := mempool.New()

		confirmed := database.NewTx(decimal.NewFromInt(1), ekehi.SenderFaucet, testAddress(0x01), decimal.Zero)
		pending := database.NewTx(decimal.NewFromInt(2), ekehi.SenderFaucet, testAddress(0x02), decimal.Zero)

		mp.Upsert(confirmed)
		mp.Upsert(pending)

		block := database.Block{Transactions: []database.Tx{confirmed}}
		mp.DeleteConfirmed(block)

		if mp.Contains(confirmed.TransactionID) {
			t.Errorf("\t%s\tTest 0:\tShould evict the confirmed transaction.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould evict the confirmed transaction.", success)
		}

		if !mp.Contains(pending.TransactionID) {
			t.Errorf("\t%s\tTest 0:\tShould keep the unconfirmed transaction.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould keep the unconfirmed transaction.", success)
		}
	}
}

func Test_Replace(t *testing.T) {
	t.Log("Given the need to swap the pool after a chain replacement.")
	{
		mp := mempool.New()

		old := database.NewTx(decimal.NewFromInt(1), ekehi.SenderFaucet, testAddress(0x01), decimal.Zero)
		mp.Upsert(old)

		a := database.NewTx(decimal.NewFromInt(2), ekehi.SenderFaucet, testAddress(0x02), decimal.Zero)
		b := database.NewTx(decimal.NewFromInt(3), ekehi.SenderFaucet, testAddress(0x03), decimal.Zero)

		mp.Replace([]database.Tx{a, b, a})

		if mp.Count() != 2 {
			t.Errorf("\t%s\tTest 0:\tShould de-duplicate on replace, got %d.", failed, mp.Count())
		} else {
			t.Logf("\t%s\tTest 0:\tShould de-duplicate on replace.", success)
		}

		if mp.Contains(old.TransactionID) {
			t.Errorf("\t%s\tTest 0:\tShould drop the prior contents.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould drop the prior contents.", success)
		}
	}
}
