package state

import (
	"time"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// Stats represents the node statistics served to clients and used as the
// liveness probe between nodes.
type Stats struct {
	NetworkName       string          `json:"networkName"`
	TotalBlocks       int             `json:"totalBlocks"`
	TotalTransactions int             `json:"totalTransactions"`
	TotalSupply       decimal.Decimal `json:"totalSupply"`
	NetworkNodes      int             `json:"networkNodes"`
	Difficulty        int             `json:"difficulty"`
	Mempool           int             `json:"mempool"`
	Hashrate          float64         `json:"hashrate"`
	UptimeSeconds     int64           `json:"uptime"`
	LatestBlockHash   string          `json:"latestBlockHash"`
}

// QueryStats assembles the statistics snapshot.
func (s *State) QueryStats() Stats {
	cfg := s.db.Config()

	var txs int
	for _, b := range s.db.ChainCopy() {
		txs += len(b.Transactions)
	}

	return Stats{
		NetworkName:       cfg.NetworkName,
		TotalBlocks:       s.db.BlockCount(),
		TotalTransactions: txs,
		TotalSupply:       s.db.TotalSupply(),
		NetworkNodes:      s.knownPeers.Count(),
		Difficulty:        cfg.Difficulty,
		Mempool:           s.mempool.Count(),
		Hashrate:          s.db.Hashrate(hashrateWindow),
		UptimeSeconds:     int64(time.Since(s.startTime).Seconds()),
		LatestBlockHash:   s.db.LatestBlock().Hash,
	}
}

// QueryBalance returns the balance for the specified address.
func (s *State) QueryBalance(address string) decimal.Decimal {
	return s.db.BalanceOf(address)
}

// QueryAddressData returns the full activity summary for an address.
func (s *State) QueryAddressData(address string) database.AddressData {
	return s.db.AddressData(address)
}

// QueryBlockByHash locates a block by its hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, bool) {
	return s.db.BlockByHash(hash)
}

// QueryTransactionByID locates a transaction and its containing block.
func (s *State) QueryTransactionByID(id string) (database.Tx, uint64, bool) {
	return s.db.TransactionByID(id)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}
