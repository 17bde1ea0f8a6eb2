package state

import (
	"context"
	"errors"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/shopspring/decimal"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are no transactions in the mempool.
var ErrNoTransactions = errors.New("no transactions in mempool")

// hashrateWindow is the number of recent blocks feeding the hashrate
// estimate.
const hashrateWindow = 16

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	if s.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.miningActive.Store(true)
	defer s.miningActive.Store(false)

	cfg := s.db.Config()
	prevBlock := s.db.LatestBlock()

	// The coinbase rides along with the selected transactions so the
	// sealed hash covers the reward as well.
	trans := s.mempool.Take(cfg.MaxTxPerBlock)
	coinbase := database.NewTx(cfg.MiningReward, ekehi.CoinbaseSender, cfg.MinerAddress, decimal.Zero)
	trans = append(trans, coinbase)

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d]", len(trans))

	// The search aborts when the tip moves under it, no matter how the
	// move happened.
	startRevision := s.tipRevision.Load()

	block, err := database.POW(ctx, database.POWArgs{
		PrevBlock:  prevBlock,
		Difficulty: cfg.Difficulty,
		Trans:      trans,
		EvHandler:  s.evHandler,
		Cancelled: func() bool {
			return s.tipRevision.Load() != startRevision
		},
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	s.mu.Lock()
	{
		if err := s.db.AcceptBlock(block); err != nil {
			s.mu.Unlock()
			return database.Block{}, err
		}
		s.tipRevision.Add(1)

		s.mempool.DeleteConfirmed(block)
		s.savePool()
	}
	s.mu.Unlock()

	s.adjustDifficulty(block, prevBlock)

	return block, nil
}

// =============================================================================

// adjustDifficulty compares the latest block interval to the target and
// moves the difficulty by at most one step with a floor of one.
func (s *State) adjustDifficulty(block database.Block, prevBlock database.Block) {
	cfg := s.db.Config()

	interval := block.Timestamp - prevBlock.Timestamp

	switch {
	case interval < cfg.TargetInterval/2:
		s.evHandler("state: adjustDifficulty: interval[%dms] below half target: difficulty %d -> %d", interval, cfg.Difficulty, cfg.Difficulty+1)
		s.db.SetDifficulty(cfg.Difficulty + 1)

	case interval > cfg.TargetInterval*2 && cfg.Difficulty > 1:
		s.evHandler("state: adjustDifficulty: interval[%dms] above twice target: difficulty %d -> %d", interval, cfg.Difficulty, cfg.Difficulty-1)
		s.db.SetDifficulty(cfg.Difficulty - 1)
	}
}
