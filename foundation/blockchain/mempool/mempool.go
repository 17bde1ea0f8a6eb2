// Package mempool maintains the set of admitted but unmined transactions.
package mempool

import (
	"sync"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
)

// Mempool represents a cache of transactions keyed by transaction id.
// Insertion order is preserved because it is the order transactions take
// inside a mined block.
type Mempool struct {
	mu    sync.RWMutex
	pool  map[string]database.Tx
	order []string
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.Tx),
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether the transaction id is in the pool.
func (mp *Mempool) Contains(id string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[id]
	return exists
}

// Upsert adds or replaces a transaction in the mempool.
func (mp *Mempool) Upsert(tx database.Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[tx.TransactionID]; !exists {
		mp.order = append(mp.order, tx.TransactionID)
	}
	mp.pool[tx.TransactionID] = tx

	return len(mp.pool)
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(id string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.deleteLocked(id)
}

// DeleteConfirmed removes every transaction the block confirmed.
func (mp *Mempool) DeleteConfirmed(b database.Block) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range b.Transactions {
		mp.deleteLocked(tx.TransactionID)
	}
}

// Take returns up to n transactions in insertion order for mining. A
// negative n returns the full pool.
func (mp *Mempool) Take(n int) []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if n < 0 || n > len(mp.order) {
		n = len(mp.order)
	}

	txs := make([]database.Tx, 0, n)
	for _, id := range mp.order {
		if len(txs) == n {
			break
		}
		txs = append(txs, mp.pool[id])
	}

	return txs
}

// Copy returns the full pool in insertion order.
func (mp *Mempool) Copy() []database.Tx {
	return mp.Take(-1)
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
	mp.order = nil
}

// Replace swaps the pool contents for the specified set, keeping the
// provided order. Used when reconciling after a chain replacement.
func (mp *Mempool) Replace(txs []database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx, len(txs))
	mp.order = make([]string, 0, len(txs))

	for _, tx := range txs {
		if _, exists := mp.pool[tx.TransactionID]; exists {
			continue
		}
		mp.pool[tx.TransactionID] = tx
		mp.order = append(mp.order, tx.TransactionID)
	}
}

// deleteLocked removes one id. The caller must hold the write lock.
func (mp *Mempool) deleteLocked(id string) {
	if _, exists := mp.pool[id]; !exists {
		return
	}

	delete(mp.pool, id)

	for i, oid := range mp.order {
		if oid == id {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}
