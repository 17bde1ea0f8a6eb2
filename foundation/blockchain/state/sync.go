package state

import (
	"sort"
	"sync"
	"time"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/peer"
)

// syncCooldown is the minimum interval between two sync attempts.
const syncCooldown = 5 * time.Second

// Sync reasons reported when no chain was adopted.
const (
	SyncReasonInProgress   = "sync_in_progress"
	SyncReasonCooldown     = "cooldown"
	SyncReasonNoCandidates = "no_longer_chain"
	SyncReasonInvalidChain = "invalid_remote_chain"
	SyncReasonUpdateFailed = "update_failed"
)

// SyncResult reports the outcome of one sync attempt.
type SyncResult struct {
	Updated   bool   `json:"updated"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Source    string `json:"source,omitempty"`
	OldLength int    `json:"oldLength,omitempty"`
	NewLength int    `json:"newLength,omitempty"`
}

// candidate is one fetched chain under consideration.
type candidate struct {
	source     string
	chain      []database.Block
	pending    []database.Tx
	difficulty int
}

// =============================================================================

// Sync pulls the full chain from every known peer and adopts the best
// strictly longer candidate that validates end to end. Only one sync runs
// at a time and attempts are spaced by a cooldown; calls during either
// condition return a skipped result.
func (s *State) Sync() SyncResult {
	s.syncMu.Lock()
	switch {
	case s.syncInProgress:
		s.syncMu.Unlock()
		return SyncResult{Skipped: true, Reason: SyncReasonInProgress}

	case time.Since(s.lastSync) < syncCooldown:
		s.syncMu.Unlock()
		return SyncResult{Skipped: true, Reason: SyncReasonCooldown}
	}
	s.syncInProgress = true
	s.syncMu.Unlock()

	defer func() {
		s.syncMu.Lock()
		s.syncInProgress = false
		s.lastSync = time.Now()
		s.syncMu.Unlock()
	}()

	s.evHandler("state: Sync: started")
	defer s.evHandler("state: Sync: completed")

	// Fetch every reachable peer's chain and discard anything that fails
	// the cheap structural checks.
	candidates := s.fetchCandidates()

	localLen := s.db.BlockCount()

	// Rank: longest first, then the declared difficulty, then total work.
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].chain) != len(candidates[j].chain) {
			return len(candidates[i].chain) > len(candidates[j].chain)
		}
		if candidates[i].difficulty != candidates[j].difficulty {
			return candidates[i].difficulty > candidates[j].difficulty
		}
		return database.TotalWork(candidates[i].chain).Cmp(database.TotalWork(candidates[j].chain)) > 0
	})

	if len(candidates) == 0 || len(candidates[0].chain) <= localLen {
		return SyncResult{Updated: false, Reason: SyncReasonNoCandidates}
	}

	best := candidates[0]

	s.evHandler("state: Sync: best candidate: source[%s] len[%d] local[%d]", best.source, len(best.chain), localLen)

	// Full consensus validation before anything is replaced.
	if err := s.db.ValidateChain(best.chain); err != nil {
		s.evHandler("state: Sync: candidate rejected: %s", err)
		return SyncResult{Updated: false, Reason: SyncReasonInvalidChain}
	}

	// An in-flight mining operation works against the chain being
	// replaced; stop it before the swap.
	done := s.cancelMining()
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The tip may have advanced while validating. Adoption requires the
	// candidate to still be strictly longer.
	if len(best.chain) <= s.db.BlockCount() {
		return SyncResult{Updated: false, Reason: SyncReasonNoCandidates}
	}

	localPending := s.mempool.Copy()

	oldLen, newLen, err := s.db.Replace(best.chain)
	if err != nil {
		s.evHandler("state: Sync: replace: ERROR: %s", err)
		return SyncResult{Updated: false, Reason: SyncReasonUpdateFailed}
	}
	s.tipRevision.Add(1)

	// The surviving mempool is the union of the remote pending set and
	// ours, minus anything the adopted chain confirmed.
	s.mempool.Replace(reconcilePending(best.pending, localPending, best.chain))
	s.savePool()

	s.evHandler("state: Sync: chain replaced: source[%s] %d -> %d blocks", best.source, oldLen, newLen)

	return SyncResult{
		Updated:   true,
		Source:    best.source,
		OldLength: oldLen,
		NewLength: newLen,
	}
}

// =============================================================================

// fetchCandidates downloads the chain from every non-loopback peer and
// keeps the structurally valid ones. Per-peer failures are isolated.
func (s *State) fetchCandidates() []candidate {
	var mu sync.Mutex
	var candidates []candidate

	s.fanOut(func(pr peer.Peer) {
		if peer.IsLoopback(pr.URL) {
			return
		}

		snapshot, err := s.NetFetchChain(pr.URL)
		if err != nil {
			s.evHandler("state: Sync: fetch: %s: ERROR: %s", pr.URL, err)
			return
		}

		if err := database.ValidateStructure(snapshot.Chain); err != nil {
			s.evHandler("state: Sync: fetch: %s: discarded: %s", pr.URL, err)
			return
		}

		mu.Lock()
		candidates = append(candidates, candidate{
			source:     pr.URL,
			chain:      snapshot.Chain,
			pending:    snapshot.PendingTransactions,
			difficulty: snapshot.Difficulty,
		})
		mu.Unlock()
	})

	return candidates
}

// reconcilePending merges the remote and local pending sets and drops
// anything confirmed by the adopted chain, de-duplicated by id.
func reconcilePending(remote []database.Tx, local []database.Tx, adopted []database.Block) []database.Tx {
	onChain := make(map[string]struct{})
	for _, b := range adopted {
		for _, tx := range b.Transactions {
			onChain[tx.TransactionID] = struct{}{}
		}
	}

	var merged []database.Tx
	seen := make(map[string]struct{})

	for _, tx := range append(append([]database.Tx{}, remote...), local...) {
		if tx.TransactionID == "" {
			continue
		}
		if _, confirmed := onChain[tx.TransactionID]; confirmed {
			continue
		}
		if _, dup := seen[tx.TransactionID]; dup {
			continue
		}
		seen[tx.TransactionID] = struct{}{}
		merged = append(merged, tx)
	}

	return merged
}
