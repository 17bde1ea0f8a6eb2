package state

import (
	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/peer"
)

// RetrieveHost returns this node's public URL.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveConfig returns a copy of the chain parameters.
func (s *State) RetrieveConfig() database.Config {
	return s.db.Config()
}

// RetrieveLatestBlock returns a copy of the current tip.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChain returns a copy of the full chain.
func (s *State) RetrieveChain() []database.Block {
	return s.db.ChainCopy()
}

// RetrieveMempool returns a copy of the pending transactions in
// insertion order.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.Copy()
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy()
}

// RetrieveSeeds returns the bootstrap URLs.
func (s *State) RetrieveSeeds() []string {
	return s.knownPeers.Seeds()
}

// BlockchainResponse assembles the full chain payload for clients and
// syncing peers.
func (s *State) BlockchainResponse() BlockchainSnapshot {
	cfg := s.db.Config()

	return BlockchainSnapshot{
		Chain:               s.db.ChainCopy(),
		PendingTransactions: s.mempool.Copy(),
		Difficulty:          cfg.Difficulty,
		NetworkName:         cfg.NetworkName,
		TokenName:           cfg.TokenName,
		TokenSymbol:         cfg.TokenSymbol,
		MiningReward:        cfg.MiningReward,
	}
}

// =============================================================================

// AddKnownPeer admits a peer URL and persists the peer section.
func (s *State) AddKnownPeer(url string) error {
	if err := s.knownPeers.Add(url); err != nil {
		return err
	}

	s.savePeers()

	return nil
}

// RemoveKnownPeer removes a peer and persists the peer section.
func (s *State) RemoveKnownPeer(url string) {
	s.knownPeers.Remove(url)
	s.savePeers()
}

// MarkPeerHealthy records a successful health observation.
func (s *State) MarkPeerHealthy(url string, height uint64, difficulty int) {
	s.knownPeers.MarkHealthy(url, height, difficulty)
}

// MarkPeerUnhealthy records a failed health observation and reports
// whether the peer was evicted.
func (s *State) MarkPeerUnhealthy(url string) bool {
	evicted := s.knownPeers.MarkUnhealthy(url)
	if evicted {
		s.savePeers()
	}

	return evicted
}

// PruneInvalidPeers removes loopback entries and this node's own URL from
// the peer set.
func (s *State) PruneInvalidPeers() []string {
	removed := s.knownPeers.PruneInvalid()
	if len(removed) > 0 {
		s.savePeers()
	}

	return removed
}
