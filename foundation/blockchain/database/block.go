package database

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/shopspring/decimal"
)

// ZeroHash is the sentinel hash carried by the genesis block.
const ZeroHash = "0"

// powCheckInterval is the number of nonce attempts between cancellation
// checks so an in-flight search aborts within a bounded number of hashes.
const powCheckInterval = 1024

func init() {

	// The consensus encoding requires amounts as bare JSON numbers, not
	// quoted strings. This must hold on every node or hashes diverge.
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================

// Block represents a group of transactions sealed by proof of work.
type Block struct {
	Index             uint64          `json:"index"`
	Timestamp         int64           `json:"timestamp"`
	Transactions      []Tx            `json:"transactions"`
	Nonce             uint64          `json:"nonce"`
	PreviousBlockHash string          `json:"previousBlockHash"`
	Hash              string          `json:"hash"`
	Difficulty        int             `json:"difficulty"`
	TotalFees         decimal.Decimal `json:"totalFees"`
}

// hashTx pins the consensus field order for a transaction inside the block
// material. Annotations are excluded from hashing.
type hashTx struct {
	Amount        decimal.Decimal `json:"amount"`
	Sender        string          `json:"sender"`
	Recipient     string          `json:"recipient"`
	Fee           decimal.Decimal `json:"fee"`
	TransactionID string          `json:"transactionId"`
	Timestamp     int64           `json:"timestamp"`
	Network       string          `json:"network,omitempty"`
}

// blockContent pins the consensus field order for the hashed block material.
type blockContent struct {
	Transactions []hashTx `json:"transactions"`
	Index        uint64   `json:"index"`
}

// HashBlock computes the consensus hash over the block material: the
// previous block hash, the decimal form of the nonce, and the canonical
// JSON of the transactions and index.
func HashBlock(previousBlockHash string, nonce uint64, transactions []Tx, index uint64) string {
	content := blockContent{
		Transactions: make([]hashTx, len(transactions)),
		Index:        index,
	}
	for i, tx := range transactions {
		content.Transactions[i] = hashTx{
			Amount:        tx.Amount,
			Sender:        tx.Sender,
			Recipient:     tx.Recipient,
			Fee:           tx.Fee,
			TransactionID: tx.TransactionID,
			Timestamp:     tx.Timestamp,
			Network:       tx.Network,
		}
	}

	data, err := json.Marshal(content)
	if err != nil {
		return ZeroHash
	}

	return ekehi.HashHex([]byte(previousBlockHash + strconv.FormatUint(nonce, 10) + string(data)))
}

// isHashSolved checks the hash complies with the POW rules: at least
// difficulty leading zero hex characters.
func isHashSolved(difficulty int, hash string) bool {
	if difficulty < 1 || difficulty > 64 || len(hash) != 64 {
		return false
	}

	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}

	return true
}

// sumFees totals the fees across the non-coinbase transactions.
func sumFees(transactions []Tx) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		if tx.IsCoinbase() {
			continue
		}
		total = total.Add(tx.Fee)
	}

	return total
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlock  Block
	Difficulty int
	Trans      []Tx
	EvHandler  func(v string, args ...any)
	Cancelled  func() bool
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic puzzle. The transaction list must already
// include the coinbase so the sealed hash covers the full block content.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}
	cancelled := args.Cancelled
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	nb := Block{
		Index:             args.PrevBlock.Index + 1,
		Timestamp:         time.Now().UnixMilli(),
		Transactions:      args.Trans,
		Nonce:             0,
		PreviousBlockHash: args.PrevBlock.Hash,
		Difficulty:        args.Difficulty,
		TotalFees:         sumFees(args.Trans),
	}

	ev("database: POW: MINING: started: blk[%d] txs[%d] difficulty[%d]", nb.Index, len(nb.Transactions), nb.Difficulty)
	defer ev("database: POW: MINING: completed")

	// The search starts at zero and increments until a solution is found
	// by us or the tip moves under a block from another node.
	for nonce := uint64(0); ; nonce++ {
		if nonce%powCheckInterval == 0 {
			if ctx.Err() != nil {
				ev("database: POW: MINING: CANCELLED")
				return Block{}, ctx.Err()
			}
			if cancelled() {
				ev("database: POW: MINING: CANCELLED: tip changed")
				return Block{}, context.Canceled
			}
		}

		hash := HashBlock(nb.PreviousBlockHash, nonce, nb.Transactions, nb.Index)
		if !isHashSolved(nb.Difficulty, hash) {
			continue
		}

		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", nb.PreviousBlockHash, hash, nonce+1)

		nb.Nonce = nonce
		nb.Hash = hash

		return nb, nil
	}
}

// =============================================================================

// ValidateBlock validates a block as the next block after previousBlock.
// Balance level checks are performed separately with chain replay.
func (b Block) ValidateBlock(previousBlock Block, miningReward decimal.Decimal, maxTxPerBlock int, evHandler func(v string, args ...any)) error {
	ev := evHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	ev("database: ValidateBlock: blk[%d]: check: block number is the next number", b.Index)

	if b.Index != previousBlock.Index+1 {
		return NewError(KindInvalidBlock, "block index is not the next index, got %d, exp %d", b.Index, previousBlock.Index+1)
	}

	ev("database: ValidateBlock: blk[%d]: check: parent hash matches parent block", b.Index)

	if b.PreviousBlockHash != previousBlock.Hash {
		return NewError(KindInvalidBlock, "parent block hash doesn't match our known parent, got %s, exp %s", b.PreviousBlockHash, previousBlock.Hash)
	}

	ev("database: ValidateBlock: blk[%d]: check: transaction count within limit", b.Index)

	// The limit covers the mempool selection; the coinbase rides on top.
	if maxTxPerBlock > 0 && len(b.Transactions) > maxTxPerBlock+1 {
		return NewError(KindInvalidBlock, "too many transactions, got %d, max %d", len(b.Transactions), maxTxPerBlock)
	}

	ev("database: ValidateBlock: blk[%d]: check: block hash has been solved", b.Index)

	if !isHashSolved(b.Difficulty, b.Hash) {
		return NewError(KindInvalidBlock, "hash %s does not satisfy difficulty %d", b.Hash, b.Difficulty)
	}

	ev("database: ValidateBlock: blk[%d]: check: recomputed hash reproduces the block hash", b.Index)

	if hash := HashBlock(b.PreviousBlockHash, b.Nonce, b.Transactions, b.Index); hash != b.Hash {
		return NewError(KindInvalidBlock, "hash does not recompute, got %s, exp %s", hash, b.Hash)
	}

	ev("database: ValidateBlock: blk[%d]: check: coinbase and fee totals", b.Index)

	var coinbase int
	for _, tx := range b.Transactions {
		if !tx.IsCoinbase() {
			continue
		}
		coinbase++
		if !tx.Amount.Equal(miningReward) {
			return NewError(KindInvalidBlock, "coinbase amount %s does not equal the mining reward %s", tx.Amount, miningReward)
		}
	}
	if coinbase > 1 {
		return NewError(KindInvalidBlock, "more than one coinbase transaction, got %d", coinbase)
	}

	if !b.TotalFees.Equal(sumFees(b.Transactions)) {
		return NewError(KindInvalidBlock, "total fees %s do not match the transaction fees %s", b.TotalFees, sumFees(b.Transactions))
	}

	return nil
}
