package database_test

import (
	"errors"
	"testing"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/ekehi/blockchain/foundation/blockchain/storage/memory"
	"github.com/shopspring/decimal"
)

func Test_GenesisOnly(t *testing.T) {
	t.Log("Given the need to start a node with no history.")
	{
		db, err := database.New(testConfig(), memory.New(), nil)
		if err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to open the database: %v", failed, err)
		}
		t.Logf("\t%s\tTest 0:\tShould be able to open the database.", success)

		if db.BlockCount() != 1 {
			t.Errorf("\t%s\tTest 0:\tShould have a chain of length 1, got %d.", failed, db.BlockCount())
		} else {
			t.Logf("\t%s\tTest 0:\tShould have a chain of length 1.", success)
		}

		if !db.TotalSupply().IsZero() {
			t.Errorf("\t%s\tTest 0:\tShould have zero total supply, got %s.", failed, db.TotalSupply())
		} else {
			t.Logf("\t%s\tTest 0:\tShould have zero total supply.", success)
		}

		if err := db.ValidateChain(db.ChainCopy()); err != nil {
			t.Errorf("\t%s\tTest 0:\tShould validate the genesis only chain: %v", failed, err)
		} else {
			t.Logf("\t%s\tTest 0:\tShould validate the genesis only chain.", success)
		}
	}
}

func Test_FaucetAndMine(t *testing.T) {
	t.Log("Given the need to mine an emission into the chain.")
	{
		db, err := database.New(testConfig(), memory.New(), nil)
		if err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to open the database: %v", failed, err)
		}

		faucet := database.NewTx(decimal.NewFromInt(100), ekehi.SenderFaucet, addrA, decimal.Zero)
		block := mineBlock(t, db.LatestBlock(), []database.Tx{faucet})

		if len(block.Transactions) != 2 {
			t.Fatalf("\t%s\tTest 0:\tShould have two transactions in the block, got %d.", failed, len(block.Transactions))
		}
		if block.Transactions[0].Sender != ekehi.SenderFaucet || !block.Transactions[1].IsCoinbase() {
			t.Errorf("\t%s\tTest 0:\tShould order the faucet before the coinbase.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould order the faucet before the coinbase.", success)
		}

		if err := db.AcceptBlock(block); err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould be able to accept the block: %v", failed, err)
		}
		t.Logf("\t%s\tTest 0:\tShould be able to accept the block.", success)

		if !db.BalanceOf(addrA).Equal(decimal.NewFromInt(100)) {
			t.Errorf("\t%s\tTest 0:\tShould credit the recipient 100, got %s.", failed, db.BalanceOf(addrA))
		} else {
			t.Logf("\t%s\tTest 0:\tShould credit the recipient 100.", success)
		}

		if !db.BalanceOf(miner).Equal(decimal.RequireFromString("12.5")) {
			t.Errorf("\t%s\tTest 0:\tShould credit the miner 12.5, got %s.", failed, db.BalanceOf(miner))
		} else {
			t.Logf("\t%s\tTest 0:\tShould credit the miner 12.5.", success)
		}

		if !db.TotalSupply().Equal(decimal.RequireFromString("112.5")) {
			t.Errorf("\t%s\tTest 0:\tShould report the emitted supply, got %s.", failed, db.TotalSupply())
		} else {
			t.Logf("\t%s\tTest 0:\tShould report the emitted supply.", success)
		}
	}
}

func Test_AdmissionRules(t *testing.T) {
	type table struct {
		name   string
		tx     database.Tx
		kind   string
		accept bool
	}

	t.Log("Given the need to enforce the admission rules.")
	{
		db, err := database.New(testConfig(), memory.New(), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		// Fund addrA with 100 through a mined emission.
		faucet := database.NewTx(decimal.NewFromInt(100), ekehi.SenderFaucet, addrA, decimal.Zero)
		if err := db.AcceptBlock(mineBlock(t, db.LatestBlock(), []database.Tx{faucet})); err != nil {
			t.Fatalf("\t%s\tShould be able to fund the test account: %v", failed, err)
		}

		tt := []table{
			{
				name:   "insufficient balance",
				tx:     database.NewTx(decimal.NewFromInt(200), addrA, addrB, decimal.RequireFromString("0.001")),
				kind:   database.KindInsufficientBalance,
				accept: false,
			},
			{
				name:   "fee below floor",
				tx:     database.NewTx(decimal.NewFromInt(10), addrA, addrB, decimal.Zero),
				kind:   database.KindInvalidTransaction,
				accept: false,
			},
			{
				name:   "fee at floor",
				tx:     database.NewTx(decimal.NewFromInt(10), addrA, addrB, decimal.RequireFromString("0.001")),
				accept: true,
			},
			{
				name:   "reserved sender ignores floor",
				tx:     database.NewTx(decimal.NewFromInt(10), ekehi.SenderFaucet, addrB, decimal.Zero),
				accept: true,
			},
			{
				name:   "self send",
				tx:     database.NewTx(decimal.NewFromInt(1), addrA, addrA, decimal.RequireFromString("0.001")),
				kind:   database.KindInvalidTransaction,
				accept: false,
			},
			{
				name:   "negative amount",
				tx:     database.NewTx(decimal.NewFromInt(-5), addrA, addrB, decimal.RequireFromString("0.001")),
				kind:   database.KindInvalidTransaction,
				accept: false,
			},
			{
				name:   "bad sender address",
				tx:     database.NewTx(decimal.NewFromInt(1), "EKHnotanaddress", addrB, decimal.RequireFromString("0.001")),
				kind:   database.KindInvalidAddress,
				accept: false,
			},
			{
				name:   "bad recipient address",
				tx:     database.NewTx(decimal.NewFromInt(1), addrA, "bogus", decimal.RequireFromString("0.001")),
				kind:   database.KindInvalidAddress,
				accept: false,
			},
		}

		for testID, tst := range tt {
			f := func(t *testing.T) {
				err := db.ValidateAdmission(tst.tx)

				switch {
				case tst.accept && err != nil:
					t.Errorf("\t%s\tTest %d:\tShould accept the transaction: %v", failed, testID, err)
				case tst.accept:
					t.Logf("\t%s\tTest %d:\tShould accept the transaction.", success, testID)
				case err == nil:
					t.Errorf("\t%s\tTest %d:\tShould reject the transaction.", failed, testID)
				case database.ErrorKind(err) != tst.kind:
					t.Errorf("\t%s\tTest %d:\tShould reject with kind %s, got %s.", failed, testID, tst.kind, database.ErrorKind(err))
				default:
					t.Logf("\t%s\tTest %d:\tShould reject with kind %s.", success, testID, tst.kind)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_DuplicateTransaction(t *testing.T) {
	t.Log("Given the need to reject ids already on the chain.")
	{
		db, err := database.New(testConfig(), memory.New(), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		faucet := database.NewTx(decimal.NewFromInt(100), ekehi.SenderFaucet, addrA, decimal.Zero)
		if err := db.AcceptBlock(mineBlock(t, db.LatestBlock(), []database.Tx{faucet})); err != nil {
			t.Fatalf("\t%s\tShould be able to accept the block: %v", failed, err)
		}

		err = db.ValidateAdmission(faucet)
		if database.ErrorKind(err) != database.KindDuplicateTransaction {
			t.Errorf("\t%s\tShould reject the confirmed id, got %v.", failed, err)
		} else {
			t.Logf("\t%s\tShould reject the confirmed id.", success)
		}

		// A block carrying the same id again must not validate.
		dupBlock := mineBlock(t, db.LatestBlock(), []database.Tx{faucet})
		if err := db.AcceptBlock(dupBlock); database.ErrorKind(err) != database.KindDuplicateTransaction {
			t.Errorf("\t%s\tShould reject a block replaying the id, got %v.", failed, err)
		} else {
			t.Logf("\t%s\tShould reject a block replaying the id.", success)
		}
	}
}

func Test_RejectBadBlocks(t *testing.T) {
	t.Log("Given the need to reject blocks that do not extend the tip.")
	{
		db, err := database.New(testConfig(), memory.New(), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		faucet := database.NewTx(decimal.NewFromInt(100), ekehi.SenderFaucet, addrA, decimal.Zero)
		good := mineBlock(t, db.LatestBlock(), []database.Tx{faucet})

		bad := good
		bad.PreviousBlockHash = "deadbeef"
		bad.Hash = database.HashBlock(bad.PreviousBlockHash, bad.Nonce, bad.Transactions, bad.Index)
		if err := db.AcceptBlock(bad); err == nil {
			t.Errorf("\t%s\tShould reject a block with a foreign parent.", failed)
		} else {
			t.Logf("\t%s\tShould reject a block with a foreign parent.", success)
		}

		tampered := good
		tampered.Transactions = append([]database.Tx{}, good.Transactions...)
		tampered.Transactions[0].Amount = decimal.NewFromInt(1_000_000)
		if err := db.AcceptBlock(tampered); err == nil {
			t.Errorf("\t%s\tShould reject a block whose content was tampered.", failed)
		} else {
			t.Logf("\t%s\tShould reject a block whose content was tampered.", success)
		}

		if db.BlockCount() != 1 {
			t.Errorf("\t%s\tShould leave the chain unchanged, got %d blocks.", failed, db.BlockCount())
		} else {
			t.Logf("\t%s\tShould leave the chain unchanged.", success)
		}

		if err := db.AcceptBlock(good); err != nil {
			t.Errorf("\t%s\tShould still accept the untampered block: %v", failed, err)
		} else {
			t.Logf("\t%s\tShould still accept the untampered block.", success)
		}
	}
}

func Test_ReplaceChain(t *testing.T) {
	t.Log("Given the need to adopt a longer chain from the network.")
	{
		strg := memory.New()
		db, err := database.New(testConfig(), strg, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		// Local chain: genesis plus one block.
		localTx := database.NewTx(decimal.NewFromInt(50), ekehi.SenderFaucet, addrA, decimal.Zero)
		if err := db.AcceptBlock(mineBlock(t, db.LatestBlock(), []database.Tx{localTx})); err != nil {
			t.Fatalf("\t%s\tShould be able to build the local chain: %v", failed, err)
		}

		// Candidate chain: same genesis plus two blocks.
		genesis := db.ChainCopy()[0]
		remoteTx := database.NewTx(decimal.NewFromInt(75), ekehi.SenderFaucet, addrB, decimal.Zero)
		blk2 := mineBlock(t, genesis, []database.Tx{remoteTx})
		remoteTx2 := database.NewTx(decimal.NewFromInt(25), ekehi.SenderFaucet, addrB, decimal.Zero)
		blk3 := mineBlock(t, blk2, []database.Tx{remoteTx2})
		candidate := []database.Block{genesis, blk2, blk3}

		if err := db.ValidateChain(candidate); err != nil {
			t.Fatalf("\t%s\tShould validate the candidate chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould validate the candidate chain.", success)

		oldLen, newLen, err := db.Replace(candidate)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to replace the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to replace the chain.", success)

		if oldLen != 2 || newLen != 3 {
			t.Errorf("\t%s\tShould report the lengths, got %d -> %d.", failed, oldLen, newLen)
		} else {
			t.Logf("\t%s\tShould report the lengths.", success)
		}

		if !db.BalanceOf(addrA).IsZero() || !db.BalanceOf(addrB).Equal(decimal.NewFromInt(100)) {
			t.Errorf("\t%s\tShould rebuild the balances from the adopted chain.", failed)
		} else {
			t.Logf("\t%s\tShould rebuild the balances from the adopted chain.", success)
		}

		// A fresh database over the same store must see the adopted chain.
		db2, err := database.New(testConfig(), strg, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen the database: %v", failed, err)
		}
		if db2.BlockCount() != 3 {
			t.Errorf("\t%s\tShould persist the adopted chain, got %d blocks.", failed, db2.BlockCount())
		} else {
			t.Logf("\t%s\tShould persist the adopted chain.", success)
		}
	}
}

func Test_ReplaceRollback(t *testing.T) {
	t.Log("Given the need to roll back when persistence fails.")
	{
		strg := &failingStore{}
		db, err := database.New(testConfig(), strg, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		genesis := db.ChainCopy()[0]
		remoteTx := database.NewTx(decimal.NewFromInt(75), ekehi.SenderFaucet, addrB, decimal.Zero)
		blk2 := mineBlock(t, genesis, []database.Tx{remoteTx})
		candidate := []database.Block{genesis, blk2}

		strg.fail = true

		if _, _, err := db.Replace(candidate); database.ErrorKind(err) != database.KindStoreUnavailable {
			t.Errorf("\t%s\tShould report the store failure, got %v.", failed, err)
		} else {
			t.Logf("\t%s\tShould report the store failure.", success)
		}

		if db.BlockCount() != 1 {
			t.Errorf("\t%s\tShould restore the prior chain, got %d blocks.", failed, db.BlockCount())
		} else {
			t.Logf("\t%s\tShould restore the prior chain.", success)
		}

		if !db.BalanceOf(addrB).IsZero() {
			t.Errorf("\t%s\tShould restore the prior balances.", failed)
		} else {
			t.Logf("\t%s\tShould restore the prior balances.", success)
		}
	}
}

func Test_StructuralValidation(t *testing.T) {
	t.Log("Given the need to discard malformed chains cheaply.")
	{
		db, err := database.New(testConfig(), memory.New(), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}

		chain := db.ChainCopy()
		faucet := database.NewTx(decimal.NewFromInt(10), ekehi.SenderFaucet, addrA, decimal.Zero)
		chain = append(chain, mineBlock(t, chain[0], []database.Tx{faucet}))

		if err := database.ValidateStructure(chain); err != nil {
			t.Errorf("\t%s\tShould pass a well formed chain: %v", failed, err)
		} else {
			t.Logf("\t%s\tShould pass a well formed chain.", success)
		}

		broken := append([]database.Block{}, chain...)
		broken[1].PreviousBlockHash = "ff"
		if err := database.ValidateStructure(broken); err == nil {
			t.Errorf("\t%s\tShould reject a broken hash link.", failed)
		} else {
			t.Logf("\t%s\tShould reject a broken hash link.", success)
		}

		if err := database.ValidateStructure(nil); err == nil {
			t.Errorf("\t%s\tShould reject an empty chain.", failed)
		} else {
			t.Logf("\t%s\tShould reject an empty chain.", success)
		}
	}
}

// =============================================================================

// failingStore fails Save on demand to exercise the rollback paths.
type failingStore struct {
	fail bool
}

func (fs *failingStore) Save(section string, value any) error {
	if fs.fail {
		return errors.New("store unavailable")
	}
	return nil
}

func (fs *failingStore) Load(section string, value any) error {
	return errors.New("section not found")
}

func (fs *failingStore) Close() error {
	return nil
}
