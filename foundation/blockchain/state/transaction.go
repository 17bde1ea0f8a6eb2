package state

import (
	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
)

// SubmitWalletTransaction accepts a transaction from the local public
// surface for inclusion. System senders are legal here: emissions are the
// policy of the issuing node. On success the transaction is shared with
// the known peers and a mining operation is signaled.
func (s *State) SubmitWalletTransaction(tx database.Tx) error {
	if err := s.admitTransaction(tx, true); err != nil {
		return err
	}

	if s.Worker != nil {
		s.Worker.SignalShareTx(tx)
		s.Worker.SignalStartMining()
	}

	return nil
}

// SubmitNodeTransaction accepts a transaction relayed by a peer. System
// senders are rejected on this path; their emissions only arrive on chain.
func (s *State) SubmitNodeTransaction(tx database.Tx) error {
	if err := s.admitTransaction(tx, false); err != nil {
		return err
	}

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}

// NextBlockIndex returns the index the next mined block will carry. The
// value is advisory: mining may include a submitted transaction later.
func (s *State) NextBlockIndex() uint64 {
	return s.db.LatestBlock().Index + 1
}

// =============================================================================

// admitTransaction runs the full admission rules and places the
// transaction in the mempool.
func (s *State) admitTransaction(tx database.Tx, allowSystem bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !allowSystem && ekehi.IsSystemSender(tx.Sender) {
		return database.NewError(database.KindInvalidTransaction, "system sender %q only accepted locally", tx.Sender)
	}

	if s.mempool.Contains(tx.TransactionID) {
		return database.NewError(database.KindDuplicateTransaction, "transaction %s already pending", tx.TransactionID)
	}

	if err := s.db.ValidateAdmission(tx); err != nil {
		return err
	}

	s.evHandler("state: admitTransaction: tx[%s] amount[%s] fee[%s]", tx, tx.Amount, tx.Fee)

	s.mempool.Upsert(tx)
	s.savePool()

	return nil
}
