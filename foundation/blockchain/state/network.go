package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/peer"
	"github.com/shopspring/decimal"
)

// netTimeout bounds every outbound peer request, connect and read
// included. The node never waits synchronously on a single peer.
const netTimeout = 5 * time.Second

// maxFanOut bounds the number of concurrent outbound requests during a
// broadcast.
const maxFanOut = 8

// =============================================================================

// BlockchainSnapshot is the payload served by and fetched from the
// blockchain endpoint.
type BlockchainSnapshot struct {
	Chain               []database.Block `json:"chain"`
	PendingTransactions []database.Tx    `json:"pendingTransactions"`
	Difficulty          int              `json:"difficulty"`
	NetworkName         string           `json:"networkName"`
	TokenName           string           `json:"tokenName"`
	TokenSymbol         string           `json:"tokenSymbol"`
	MiningReward        decimal.Decimal  `json:"miningReward"`
}

// PeerStats is the subset of the stats payload the workers need for
// health checks and discovery.
type PeerStats struct {
	TotalBlocks  int `json:"totalBlocks"`
	NetworkNodes int `json:"networkNodes"`
	Difficulty   int `json:"difficulty"`
}

// =============================================================================

// NetSendBlockToPeers takes a newly accepted block and offers it to every
// known peer. Delivery is best effort; sync reconciles lost messages.
func (s *State) NetSendBlockToPeers(block database.Block) {
	s.evHandler("state: NetSendBlockToPeers: started: blk[%s]", block.Hash)
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	s.fanOut(func(pr peer.Peer) {
		url := fmt.Sprintf("%s/receive-new-block", pr.URL)

		var resp struct {
			Note string `json:"note"`
		}

		if err := s.send(http.MethodPost, url, block, &resp); err != nil {
			s.evHandler("state: NetSendBlockToPeers: WARNING: %s: %s", pr.URL, err)
			return
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]: note[%s]", pr.URL, resp.Note)
	})
}

// NetSendTxToPeers shares an admitted transaction with the known peers
// through the same endpoint this node exposes for transactions.
func (s *State) NetSendTxToPeers(tx database.Tx) {
	s.evHandler("state: NetSendTxToPeers: started: tx[%s]", tx)
	defer s.evHandler("state: NetSendTxToPeers: completed")

	s.fanOut(func(pr peer.Peer) {
		url := fmt.Sprintf("%s/transaction", pr.URL)

		if err := s.send(http.MethodPost, url, tx, nil); err != nil {
			s.evHandler("state: NetSendTxToPeers: WARNING: %s: %s", pr.URL, err)
		}
	})
}

// NetPeerStats asks a node for its statistics. Discovery and the health
// monitor use this as the liveness probe.
func (s *State) NetPeerStats(url string) (PeerStats, error) {
	var stats PeerStats
	if err := s.send(http.MethodGet, fmt.Sprintf("%s/stats", url), nil, &stats); err != nil {
		return PeerStats{}, database.NewError(database.KindPeerUnreachable, "%s: %s", url, err)
	}

	return stats, nil
}

// NetRegisterSelf announces this node to a peer so the peer relays it
// across the network.
func (s *State) NetRegisterSelf(url string) error {
	payload := struct {
		NewNodeURL string `json:"newNodeUrl"`
	}{
		NewNodeURL: s.host,
	}

	if err := s.send(http.MethodPost, fmt.Sprintf("%s/register-and-broadcast-node", url), payload, nil); err != nil {
		return database.NewError(database.KindPeerUnreachable, "%s: %s", url, err)
	}

	return nil
}

// NetPeerList harvests the peer list a node knows about.
func (s *State) NetPeerList(url string) ([]peer.Peer, error) {
	var resp struct {
		Peers []peer.Peer `json:"peers"`
	}

	if err := s.send(http.MethodGet, fmt.Sprintf("%s/api/network/peers", url), nil, &resp); err != nil {
		return nil, database.NewError(database.KindPeerUnreachable, "%s: %s", url, err)
	}

	return resp.Peers, nil
}

// NetShareNewPeer relays a newly registered node to every known peer and
// hands the new node the full peer list back, this node included.
func (s *State) NetShareNewPeer(newNodeURL string) {
	s.evHandler("state: NetShareNewPeer: started: peer[%s]", newNodeURL)
	defer s.evHandler("state: NetShareNewPeer: completed")

	payload := struct {
		NewNodeURL string `json:"newNodeUrl"`
	}{
		NewNodeURL: newNodeURL,
	}

	s.fanOut(func(pr peer.Peer) {
		if pr.URL == newNodeURL {
			return
		}

		if err := s.send(http.MethodPost, fmt.Sprintf("%s/register-node", pr.URL), payload, nil); err != nil {
			s.evHandler("state: NetShareNewPeer: WARNING: %s: %s", pr.URL, err)
		}
	})

	bulk := struct {
		AllNetworkNodes []string `json:"allNetworkNodes"`
	}{
		AllNetworkNodes: append(s.knownPeers.URLs(), s.host),
	}

	if err := s.send(http.MethodPost, fmt.Sprintf("%s/register-nodes-bulk", newNodeURL), bulk, nil); err != nil {
		s.evHandler("state: NetShareNewPeer: bulk: WARNING: %s: %s", newNodeURL, err)
	}
}

// NetFetchChain pulls the full chain and pending set from a peer.
func (s *State) NetFetchChain(url string) (BlockchainSnapshot, error) {
	var snapshot BlockchainSnapshot
	if err := s.send(http.MethodGet, fmt.Sprintf("%s/blockchain", url), nil, &snapshot); err != nil {
		return BlockchainSnapshot{}, database.NewError(database.KindPeerUnreachable, "%s: %s", url, err)
	}

	return snapshot, nil
}

// =============================================================================

// fanOut runs the specified function against every known peer with
// bounded concurrency and waits for the full broadcast to finish.
func (s *State) fanOut(fn func(pr peer.Peer)) {
	peers := s.RetrieveKnownPeers()

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxFanOut)

	for _, pr := range peers {
		wg.Add(1)
		go func(pr peer.Peer) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			fn(pr)
		}(pr)
	}

	wg.Wait()
}

// send is a helper function to send an HTTP request to a node.
func (s *State) send(method string, url string, dataSend any, dataRecv any) error {
	var req *http.Request

	switch {
	case dataSend != nil:
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		req, err = http.NewRequest(method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

	default:
		var err error
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			return err
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return fmt.Errorf("%s", string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
