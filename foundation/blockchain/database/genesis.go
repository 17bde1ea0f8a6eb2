package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// genesisNonce is the fixed nonce carried by every genesis block.
const genesisNonce = 100

// NewGenesisBlock constructs the fixed first block of a chain. The hash is
// the sentinel value, not a computed digest, so the proof of work rules
// never apply to it.
func NewGenesisBlock() Block {
	return Block{
		Index:             1,
		Timestamp:         time.Now().UnixMilli(),
		Transactions:      []Tx{},
		Nonce:             genesisNonce,
		PreviousBlockHash: ZeroHash,
		Hash:              ZeroHash,
		Difficulty:        0,
		TotalFees:         decimal.Zero,
	}
}

// isGenesisShape reports whether the block can stand as the first block of
// a chain. A zero index is tolerated on chains received from peers.
func isGenesisShape(b Block) bool {
	return (b.Index == 1 || b.Index == 0) &&
		b.PreviousBlockHash == ZeroHash &&
		b.Hash == ZeroHash
}
