// Package state is the core API for the node and implements all the
// business rules and processing.
package state

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/mempool"
	"github.com/ekehi/blockchain/foundation/blockchain/peer"
	"github.com/ekehi/blockchain/foundation/blockchain/storage"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks and transactions.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for mining, peer discovery, health
// monitoring and chain syncing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.Tx)
	SignalDiscovery()
}

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	Host       string
	Chain      database.Config
	KnownPeers *peer.Set
	Storage    storage.Store
	EvHandler  EventHandler
}

// State manages the blockchain node.
type State struct {
	mu sync.RWMutex

	host      string
	evHandler EventHandler
	startTime time.Time

	allowMining  bool
	miningActive atomic.Bool
	tipRevision  atomic.Uint64

	syncMu         sync.Mutex
	syncInProgress bool
	lastSync       time.Time

	db         *database.Database
	mempool    *mempool.Mempool
	knownPeers *peer.Set
	strg       storage.Store
	client     *http.Client

	Worker Worker
}

// New constructs a new node state for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(cfg.Chain, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	state := State{
		host:        cfg.Host,
		evHandler:   ev,
		startTime:   time.Now(),
		allowMining: true,
		db:          db,
		mempool:     mempool.New(),
		knownPeers:  cfg.KnownPeers,
		strg:        cfg.Storage,
		client:      &http.Client{Timeout: netTimeout},
	}

	// Restore the pending transactions that survived the last shutdown.
	var pending []database.Tx
	if err := cfg.Storage.Load(storage.SectionMempool, &pending); err != nil && !errors.Is(err, storage.ErrNotFound) {
		ev("state: New: load mempool: ERROR: %s", err)
	}
	for _, tx := range pending {
		if err := db.ValidateAdmission(tx); err != nil {
			ev("state: New: restore mempool: drop tx[%s]: %s", tx, err)
			continue
		}
		state.mempool.Upsert(tx)
	}

	// Restore the known peers and drop anything that should never have
	// been persisted.
	var peers []peer.Peer
	if err := cfg.Storage.Load(storage.SectionPeers, &peers); err != nil && !errors.Is(err, storage.ErrNotFound) {
		ev("state: New: load peers: ERROR: %s", err)
	}
	cfg.KnownPeers.Restore(peers)
	for _, removed := range cfg.KnownPeers.PruneInvalid() {
		ev("state: New: prune peer[%s]", removed)
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down: background work stops first, the
// volatile sections are flushed, then the store is closed.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.savePool()
	s.savePeers()

	return s.strg.Close()
}

// =============================================================================

// IsMiningAllowed reports whether the mining scheduler may run.
func (s *State) IsMiningAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.allowMining
}

// TurnMiningOn enables the mining scheduler.
func (s *State) TurnMiningOn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowMining = true
}

// TurnMiningOff disables the mining scheduler. An in-flight search is
// cancelled by the worker.
func (s *State) TurnMiningOff() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowMining = false
}

// MiningStatus reports the scheduler and search state.
type MiningStatus struct {
	Enabled    bool   `json:"enabled"`
	Running    bool   `json:"running"`
	Difficulty int    `json:"difficulty"`
	Miner      string `json:"miner"`
}

// RetrieveMiningStatus returns the current mining status.
func (s *State) RetrieveMiningStatus() MiningStatus {
	cfg := s.db.Config()

	return MiningStatus{
		Enabled:    s.IsMiningAllowed(),
		Running:    s.miningActive.Load(),
		Difficulty: cfg.Difficulty,
		Miner:      cfg.MinerAddress,
	}
}

// TipRevision returns the counter incremented on every tip change. The
// miner uses it to notice the chain moved under an in-flight search.
func (s *State) TipRevision() uint64 {
	return s.tipRevision.Load()
}

// =============================================================================

// cancelMining asks the worker to stop an in-flight search. The returned
// done function releases the mining goroutine to finish its cleanup.
func (s *State) cancelMining() (done func()) {
	if s.Worker == nil {
		return func() {}
	}

	return s.Worker.SignalCancelMining()
}

// savePool persists the mempool section best effort.
func (s *State) savePool() {
	if err := s.strg.Save(storage.SectionMempool, s.mempool.Copy()); err != nil {
		s.evHandler("state: savePool: ERROR: %s", err)
	}
}

// savePeers persists the peers section best effort.
func (s *State) savePeers() {
	if err := s.strg.Save(storage.SectionPeers, s.knownPeers.Copy()); err != nil {
		s.evHandler("state: savePeers: ERROR: %s", err)
	}
}
