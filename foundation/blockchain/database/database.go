// Package database handles the chain state for the node: the ordered chain
// of blocks, the account balances replayed from it, and their persistence.
package database

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/ekehi/blockchain/foundation/blockchain/storage"
	"github.com/shopspring/decimal"
)

// Database manages the chain and the balances derived from it.
type Database struct {
	mu        sync.RWMutex
	config    Config
	chain     []Block
	balances  map[string]decimal.Decimal
	strg      storage.Store
	evHandler func(v string, args ...any)
}

// New constructs the database, loading the persisted chain when one exists
// and creating the genesis block when one does not.
func New(config Config, strg storage.Store, evHandler func(v string, args ...any)) (*Database, error) {
	ev := evHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	db := Database{
		config:    config,
		strg:      strg,
		evHandler: ev,
	}

	// A previously adjusted difficulty survives a restart.
	var stored Config
	if err := strg.Load(storage.SectionConfig, &stored); err == nil && stored.Difficulty >= 1 {
		db.config.Difficulty = stored.Difficulty
	}

	var chain []Block
	if err := strg.Load(storage.SectionChain, &chain); err != nil && !errors.Is(err, storage.ErrNotFound) {
		ev("database: New: load chain: ERROR: %s: starting from genesis", err)
		chain = nil
	}

	if len(chain) == 0 {
		chain = []Block{NewGenesisBlock()}
		if err := strg.Save(storage.SectionChain, chain); err != nil {
			ev("database: New: save genesis: ERROR: %s", err)
		}
	}

	balances, err := replayChain(chain, db.config)
	if err != nil {
		return nil, err
	}

	db.chain = chain
	db.balances = balances

	return &db, nil
}

// Config returns a copy of the chain parameters.
func (db *Database) Config() Config {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.config
}

// SetDifficulty updates the difficulty with a floor of one and persists
// the configuration best effort.
func (db *Database) SetDifficulty(difficulty int) {
	if difficulty < 1 {
		difficulty = 1
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.config.Difficulty = difficulty

	if err := db.strg.Save(storage.SectionConfig, db.config); err != nil {
		db.evHandler("database: SetDifficulty: save config: ERROR: %s", err)
	}
}

// LatestBlock returns a copy of the current tip.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.chain[len(db.chain)-1]
}

// BlockCount returns the length of the chain including genesis.
func (db *Database) BlockCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.chain)
}

// ChainCopy returns a copy of the full chain.
func (db *Database) ChainCopy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	chain := make([]Block, len(db.chain))
	copy(chain, db.chain)

	return chain
}

// =============================================================================

// AcceptBlock validates the block as the next block on the chain and, when
// that passes, appends it, applies the balance changes and schedules the
// store write. Persistence failures do not undo a logically valid append.
func (db *Database) AcceptBlock(b Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	prev := db.chain[len(db.chain)-1]

	if err := b.ValidateBlock(prev, db.config.MiningReward, db.config.MaxTxPerBlock, db.evHandler); err != nil {
		return err
	}

	working := copyBalances(db.balances)

	if err := applyTransactions(b, working, db.config.MinFee, db.hasTransactionLocked); err != nil {
		return err
	}

	db.chain = append(db.chain, b)
	db.balances = working

	if err := db.strg.Save(storage.SectionChain, db.chain); err != nil {
		db.evHandler("database: AcceptBlock: save chain: ERROR: %s", err)
	}

	return nil
}

// Replace swaps the entire chain for the candidate under the write lock.
// The caller is responsible for full candidate validation. When persisting
// the new chain fails, the previous in-memory state is restored.
func (db *Database) Replace(candidate []Block) (oldLen int, newLen int, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	balances, err := replayChain(candidate, db.config)
	if err != nil {
		return 0, 0, err
	}

	prevChain := db.chain
	prevBalances := db.balances

	db.chain = candidate
	db.balances = balances

	if err := db.strg.Save(storage.SectionChain, db.chain); err != nil {
		db.chain = prevChain
		db.balances = prevBalances
		return 0, 0, NewError(KindStoreUnavailable, "persisting replacement chain: %s", err)
	}

	return len(prevChain), len(candidate), nil
}

// ValidateChain runs the full consensus validation over the candidate by
// replaying it from genesis with this node's chain parameters.
func (db *Database) ValidateChain(c []Block) error {
	_, err := replayChain(c, db.Config())
	return err
}

// ValidateAdmission applies the mempool admission rules to the transaction
// using the current chain balances.
func (db *Database) ValidateAdmission(tx Tx) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.hasTransactionLocked(tx.TransactionID) {
		return NewError(KindDuplicateTransaction, "transaction %s already on the chain", tx.TransactionID)
	}

	return checkTx(tx, db.balances[tx.Sender], db.config.MinFee)
}

// =============================================================================

// BalanceOf returns the balance for the specified address.
func (db *Database) BalanceOf(address string) decimal.Decimal {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.balances[address]
}

// CopyBalances returns a copy of the current balance table.
func (db *Database) CopyBalances() map[string]decimal.Decimal {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return copyBalances(db.balances)
}

// AddressData represents everything the chain knows about one address.
type AddressData struct {
	Address          string          `json:"address"`
	Transactions     []Tx            `json:"transactions"`
	Balance          decimal.Decimal `json:"balance"`
	TotalSent        decimal.Decimal `json:"totalSent"`
	TotalReceived    decimal.Decimal `json:"totalReceived"`
	TotalFees        decimal.Decimal `json:"totalFees"`
	TransactionCount int             `json:"transactionCount"`
}

// AddressData scans the chain and aggregates the activity for one address.
func (db *Database) AddressData(address string) AddressData {
	db.mu.RLock()
	defer db.mu.RUnlock()

	data := AddressData{
		Address:       address,
		Transactions:  []Tx{},
		Balance:       db.balances[address],
		TotalSent:     decimal.Zero,
		TotalReceived: decimal.Zero,
		TotalFees:     decimal.Zero,
	}

	for _, b := range db.chain {
		for _, tx := range b.Transactions {
			switch address {
			case tx.Sender:
				data.TotalSent = data.TotalSent.Add(tx.Amount)
				data.TotalFees = data.TotalFees.Add(tx.Fee)
			case tx.Recipient:
				data.TotalReceived = data.TotalReceived.Add(tx.Amount)
			default:
				continue
			}

			data.Transactions = append(data.Transactions, tx)
			data.TransactionCount++
		}
	}

	return data
}

// BlockByHash locates a block by its hash with a linear scan.
func (db *Database) BlockByHash(hash string) (Block, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, b := range db.chain {
		if b.Hash == hash {
			return b, true
		}
	}

	return Block{}, false
}

// TransactionByID locates a transaction and the index of its containing
// block with a linear scan.
func (db *Database) TransactionByID(id string) (Tx, uint64, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, b := range db.chain {
		for _, tx := range b.Transactions {
			if tx.TransactionID == id {
				return tx, b.Index, true
			}
		}
	}

	return Tx{}, 0, false
}

// TotalSupply returns the circulating supply: every reserved-sender
// emission minus the fees burned by inclusion.
func (db *Database) TotalSupply() decimal.Decimal {
	db.mu.RLock()
	defer db.mu.RUnlock()

	supply := decimal.Zero
	for _, b := range db.chain {
		for _, tx := range b.Transactions {
			if ekehi.IsReservedSender(tx.Sender) {
				supply = supply.Add(tx.Amount)
			}
		}
		supply = supply.Sub(b.TotalFees)
	}

	return supply
}

// Hashrate estimates hashes per second over the last n blocks as the total
// nonce work divided by the total block interval.
func (db *Database) Hashrate(n int) float64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	start := len(db.chain) - n
	if start < 1 {
		start = 1
	}

	var nonces uint64
	var intervalMs int64
	for i := start; i < len(db.chain); i++ {
		nonces += db.chain[i].Nonce
		intervalMs += db.chain[i].Timestamp - db.chain[i-1].Timestamp
	}

	if intervalMs <= 0 {
		return 0
	}

	return float64(nonces) / (float64(intervalMs) / 1000)
}

// =============================================================================

// TotalWork sums 2^difficulty across the chain. The value is only a
// tiebreak proxy, not a cryptographic accumulation.
func TotalWork(c []Block) *big.Int {
	work := big.NewInt(0)
	one := big.NewInt(1)

	for _, b := range c {
		if b.Difficulty < 1 {
			continue
		}
		work.Add(work, new(big.Int).Lsh(one, uint(b.Difficulty)))
	}

	return work
}

// ValidateStructure performs the cheap structural checks used to discard
// malformed chains before the expensive full validation: the genesis
// shape, the hash links and the index sequence.
func ValidateStructure(c []Block) error {
	if len(c) == 0 {
		return NewError(KindChainInvalid, "chain is empty")
	}

	if !isGenesisShape(c[0]) {
		return NewError(KindChainInvalid, "first block is not a genesis block")
	}

	for i := 1; i < len(c); i++ {
		if c[i].Index != c[i-1].Index+1 {
			return NewError(KindChainInvalid, "index break at position %d, got %d, exp %d", i, c[i].Index, c[i-1].Index+1)
		}
		if c[i].PreviousBlockHash != c[i-1].Hash {
			return NewError(KindChainInvalid, "hash link break at block %d", c[i].Index)
		}
		if c[i].Hash == "" || c[i].Hash == ZeroHash {
			return NewError(KindChainInvalid, "block %d is missing its hash", c[i].Index)
		}
	}

	return nil
}

// =============================================================================

// hasTransactionLocked scans the chain for the transaction id. The caller
// must hold at least the read lock.
func (db *Database) hasTransactionLocked(id string) bool {
	for _, b := range db.chain {
		for _, tx := range b.Transactions {
			if tx.TransactionID == id {
				return true
			}
		}
	}

	return false
}

// copyBalances makes a working copy of a balance table.
func copyBalances(balances map[string]decimal.Decimal) map[string]decimal.Decimal {
	cpy := make(map[string]decimal.Decimal, len(balances))
	for address, balance := range balances {
		cpy[address] = balance
	}

	return cpy
}

// applyTransactions validates and applies the balance changes for every
// transaction in the block against the working balance table. hasID
// reports whether a transaction id is already recorded outside this block.
func applyTransactions(b Block, balances map[string]decimal.Decimal, minFee decimal.Decimal, hasID func(id string) bool) error {
	seen := make(map[string]struct{}, len(b.Transactions))

	for _, tx := range b.Transactions {
		if tx.TransactionID == "" {
			return NewError(KindInvalidTransaction, "transaction id is missing")
		}

		if _, dup := seen[tx.TransactionID]; dup || hasID(tx.TransactionID) {
			return NewError(KindDuplicateTransaction, "transaction %s appears more than once", tx.TransactionID)
		}
		seen[tx.TransactionID] = struct{}{}

		if tx.IsCoinbase() {
			if !ekehi.ValidateAddress(tx.Recipient) || ekehi.IsReservedSender(tx.Recipient) {
				return NewError(KindInvalidBlock, "coinbase recipient %q is not a valid address", tx.Recipient)
			}
			balances[tx.Recipient] = balances[tx.Recipient].Add(tx.Amount)
			continue
		}

		if err := checkTx(tx, balances[tx.Sender], minFee); err != nil {
			return err
		}

		if !ekehi.IsSystemSender(tx.Sender) {
			balances[tx.Sender] = balances[tx.Sender].Sub(tx.Amount).Sub(tx.Fee)
		}
		balances[tx.Recipient] = balances[tx.Recipient].Add(tx.Amount)
	}

	return nil
}

// replayChain rebuilds the balance table by replaying the candidate from
// genesis, enforcing the full consensus rules along the way.
func replayChain(c []Block, config Config) (map[string]decimal.Decimal, error) {
	if err := ValidateStructure(c); err != nil {
		return nil, err
	}

	balances := make(map[string]decimal.Decimal)
	seen := make(map[string]struct{})
	hasID := func(id string) bool {
		_, exists := seen[id]
		return exists
	}

	for i := 1; i < len(c); i++ {
		b := c[i]

		if err := b.ValidateBlock(c[i-1], config.MiningReward, config.MaxTxPerBlock, nil); err != nil {
			return nil, NewError(KindChainInvalid, "block %d: %s", b.Index, err)
		}

		if err := applyTransactions(b, balances, config.MinFee, hasID); err != nil {
			return nil, NewError(KindChainInvalid, "block %d: %s", b.Index, err)
		}

		for _, tx := range b.Transactions {
			seen[tx.TransactionID] = struct{}{}
		}
	}

	return balances, nil
}
