// Package peer maintains the set of known peers and their observed health.
package peer

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
)

// maxConsecutiveFailures is the number of failed health checks in a row
// before a peer is evicted from the set.
const maxConsecutiveFailures = 3

// Peer represents information about a node in the network.
type Peer struct {
	URL        string `json:"url"`
	LastSeen   int64  `json:"lastSeen"`
	Height     uint64 `json:"height"`
	Difficulty int    `json:"difficulty"`
	Healthy    bool   `json:"healthy"`
	Failures   int    `json:"failures"`
}

// New constructs a peer record for a URL.
func New(rawURL string) Peer {
	return Peer{
		URL: normalize(rawURL),
	}
}

// =============================================================================

// Set maintains the known peers for this node.
type Set struct {
	mu    sync.RWMutex
	own   string
	max   int
	seeds []string
	peers map[string]Peer
}

// NewSet constructs a peer set. The node's own URL is rejected on Add and
// excluded from copies handed to the network workers.
func NewSet(ownURL string, maxPeers int, seeds []string) *Set {
	cleaned := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if seed = normalize(seed); seed != "" && seed != normalize(ownURL) {
			cleaned = append(cleaned, seed)
		}
	}

	return &Set{
		own:   normalize(ownURL),
		max:   maxPeers,
		seeds: cleaned,
		peers: make(map[string]Peer),
	}
}

// Seeds returns the bootstrap URLs.
func (ps *Set) Seeds() []string {
	seeds := make([]string, len(ps.seeds))
	copy(seeds, ps.seeds)
	return seeds
}

// Add admits a new peer URL into the set. The node's own URL, loopback
// URLs, duplicates and anything beyond capacity are rejected.
func (ps *Set) Add(rawURL string) error {
	u := normalize(rawURL)

	if u == "" {
		return database.NewError(database.KindUnsupported, "peer url is empty")
	}

	if u == ps.own {
		return database.NewError(database.KindUnsupported, "peer url %s is this node", u)
	}

	if IsLoopback(u) {
		return database.NewError(database.KindUnsupported, "peer url %s is loopback", u)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.peers[u]; exists {
		return database.NewError(database.KindUnsupported, "peer url %s already known", u)
	}

	if ps.max > 0 && len(ps.peers) >= ps.max {
		return database.NewError(database.KindUnsupported, "peer set is full, max %d", ps.max)
	}

	ps.peers[u] = Peer{
		URL:      u,
		LastSeen: time.Now().UnixMilli(),
		Healthy:  true,
	}

	return nil
}

// Remove removes a peer from the set.
func (ps *Set) Remove(rawURL string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.peers, normalize(rawURL))
}

// Count returns the number of known peers.
func (ps *Set) Count() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.peers)
}

// Copy returns the current peer records.
func (ps *Set) Copy() []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		peers = append(peers, p)
	}

	return peers
}

// URLs returns the URLs of the known peers.
func (ps *Set) URLs() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	urls := make([]string, 0, len(ps.peers))
	for u := range ps.peers {
		urls = append(urls, u)
	}

	return urls
}

// MarkHealthy records a successful health observation for the peer.
func (ps *Set) MarkHealthy(rawURL string, height uint64, difficulty int) {
	u := normalize(rawURL)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, exists := ps.peers[u]
	if !exists {
		return
	}

	p.LastSeen = time.Now().UnixMilli()
	p.Height = height
	p.Difficulty = difficulty
	p.Healthy = true
	p.Failures = 0

	ps.peers[u] = p
}

// MarkUnhealthy records a failed health observation. The peer is evicted
// and true returned once the consecutive failure limit is reached.
func (ps *Set) MarkUnhealthy(rawURL string) bool {
	u := normalize(rawURL)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, exists := ps.peers[u]
	if !exists {
		return false
	}

	p.Healthy = false
	p.Failures++

	if p.Failures >= maxConsecutiveFailures {
		delete(ps.peers, u)
		return true
	}

	ps.peers[u] = p

	return false
}

// PruneInvalid removes entries that should never have been in the set:
// loopback URLs and the node's own URL. Restored peer lists can carry them.
func (ps *Set) PruneInvalid() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var removed []string
	for u := range ps.peers {
		if u == ps.own || IsLoopback(u) {
			delete(ps.peers, u)
			removed = append(removed, u)
		}
	}

	return removed
}

// Restore loads previously persisted peer records, applying the same
// admission rules as Add.
func (ps *Set) Restore(peers []Peer) {
	for _, p := range peers {
		if err := ps.Add(p.URL); err != nil {
			continue
		}

		ps.mu.Lock()
		restored := ps.peers[p.URL]
		restored.Height = p.Height
		restored.Difficulty = p.Difficulty
		ps.peers[p.URL] = restored
		ps.mu.Unlock()
	}
}

// =============================================================================

// IsLoopback reports whether the URL points at a loopback interface.
func IsLoopback(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := u.Hostname()

	return host == "localhost" ||
		host == "::1" ||
		host == "0.0.0.0" ||
		strings.HasPrefix(host, "127.")
}

// normalize trims whitespace and the trailing slash so URL comparisons
// are stable across sources.
func normalize(rawURL string) string {
	return strings.TrimRight(strings.TrimSpace(rawURL), "/")
}
