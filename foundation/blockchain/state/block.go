package state

import (
	"github.com/ekehi/blockchain/foundation/blockchain/database"
)

// AcceptPeerBlock takes a block received from a peer, validates it as the
// next block in the chain and appends it. Anything that does not line up
// with the tip is rejected here; deeper disagreement is reconciled by Sync.
func (s *State) AcceptPeerBlock(block database.Block) error {
	s.evHandler("state: AcceptPeerBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.PreviousBlockHash, block.Hash, len(block.Transactions))
	defer s.evHandler("state: AcceptPeerBlock: completed")

	// If a mining operation is in flight it needs to stop immediately.
	// The mining goroutine will not return until done is called, which
	// lets this function complete its state changes first.
	done := s.cancelMining()
	defer func() {
		s.evHandler("state: AcceptPeerBlock: signal mining to terminate")
		done()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.AcceptBlock(block); err != nil {
		return err
	}
	s.tipRevision.Add(1)

	// Drop anything the new block confirmed.
	s.mempool.DeleteConfirmed(block)
	s.savePool()

	return nil
}
