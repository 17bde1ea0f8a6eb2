// Package nodegrp maintains the group of handlers for the public node
// access.
package nodegrp

import (
	"context"
	"errors"
	"net/http"
	"time"

	v1 "github.com/ekehi/blockchain/business/web/v1"
	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/ekehi/blockchain/foundation/blockchain/state"
	"github.com/ekehi/blockchain/foundation/events"
	"github.com/ekehi/blockchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Blockchain returns the full chain, the pending transactions and the
// chain parameters. Syncing peers consume the same payload.
func (h Handlers) Blockchain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.BlockchainResponse(), http.StatusOK)
}

// Stats returns the node statistics.
func (h Handlers) Stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryStats(), http.StatusOK)
}

// SubmitTransaction accepts a fully formed transaction relayed by a peer
// node for mempool admission.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return database.NewError(database.KindUnsupported, "unable to decode payload: %s", err)
	}

	h.Log.Infow("add tran", "traceid", v.TraceID, "tx", tx.String(), "amount", tx.Amount, "fee", tx.Fee)
	if err := h.State.SubmitNodeTransaction(tx); err != nil {
		return err
	}

	resp := struct {
		Note       string `json:"note"`
		BlockIndex uint64 `json:"blockIndex"`
	}{
		Note:       "transaction added to mempool",
		BlockIndex: h.State.NextBlockIndex(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BroadcastTransaction creates a transaction from the client payload,
// admits it and shares it with the known peers.
func (h Handlers) BroadcastTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var app newTx
	if err := web.Decode(r, &app); err != nil {
		return err
	}

	tx := database.NewTx(app.Amount, app.Sender, app.Recipient, app.Fee)
	tx.Network = app.Network

	h.Log.Infow("add user tran", "traceid", v.TraceID, "tx", tx.String(), "amount", tx.Amount, "fee", tx.Fee)
	if err := h.State.SubmitWalletTransaction(tx); err != nil {
		return err
	}

	resp := struct {
		Note          string `json:"note"`
		TransactionID string `json:"transactionId"`
		BlockIndex    uint64 `json:"blockIndex"`
	}{
		Note:          "transaction created and broadcast",
		TransactionID: tx.TransactionID,
		BlockIndex:    h.State.NextBlockIndex(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// Mine signals one mining operation. The scheduler skips the run when the
// mempool is empty.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	note := "mining signaled"
	if h.State.QueryMempoolLength() == 0 {
		note = "mempool empty, nothing to mine"
	} else if h.State.Worker != nil {
		h.State.Worker.SignalStartMining()
	}

	resp := struct {
		Note       string `json:"note"`
		BlockIndex uint64 `json:"blockIndex"`
	}{
		Note:       note,
		BlockIndex: h.State.NextBlockIndex(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MiningStart enables the mining scheduler.
func (h Handlers) MiningStart(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.State.TurnMiningOn()

	if h.State.QueryMempoolLength() > 0 && h.State.Worker != nil {
		h.State.Worker.SignalStartMining()
	}

	return web.Respond(ctx, w, h.State.RetrieveMiningStatus(), http.StatusOK)
}

// MiningStop disables the mining scheduler and cancels an in-flight
// search.
func (h Handlers) MiningStop(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.State.TurnMiningOff()

	if h.State.Worker != nil {
		done := h.State.Worker.SignalCancelMining()
		done()
	}

	return web.Respond(ctx, w, h.State.RetrieveMiningStatus(), http.StatusOK)
}

// MiningStatus reports the scheduler and search state.
func (h Handlers) MiningStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveMiningStatus(), http.StatusOK)
}

// =============================================================================

// BlockByHash returns the block carrying the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	block, found := h.State.QueryBlockByHash(hash)
	if !found {
		return v1.NewRequestError(errors.New("block not found"), http.StatusNotFound)
	}

	resp := struct {
		Block database.Block `json:"block"`
	}{
		Block: block,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// TransactionByID returns the transaction carrying the specified id and
// the index of its containing block.
func (h Handlers) TransactionByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	tx, blockIndex, found := h.State.QueryTransactionByID(id)
	if !found {
		return v1.NewRequestError(errors.New("transaction not found"), http.StatusNotFound)
	}

	resp := struct {
		Transaction database.Tx `json:"transaction"`
		BlockIndex  uint64      `json:"blockIndex"`
	}{
		Transaction: tx,
		BlockIndex:  blockIndex,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// AddressData returns the activity summary for the specified address.
func (h Handlers) AddressData(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr := web.Param(r, "addr")

	if !ekehi.ValidateAddress(addr) {
		return database.NewError(database.KindInvalidAddress, "address %q is not a valid address", addr)
	}

	resp := struct {
		AddressData database.AddressData `json:"addressData"`
	}{
		AddressData: h.State.QueryAddressData(addr),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// NetworkPeers returns the known peer records.
func (h Handlers) NetworkPeers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Peers []peerRecord `json:"peers"`
	}{
		Peers: []peerRecord{},
	}

	for _, pr := range h.State.RetrieveKnownPeers() {
		resp.Peers = append(resp.Peers, peerRecord{
			URL:        pr.URL,
			LastSeen:   pr.LastSeen,
			Height:     pr.Height,
			Difficulty: pr.Difficulty,
			Healthy:    pr.Healthy,
		})
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// NetworkDiscover schedules an immediate peer discovery run.
func (h Handlers) NetworkDiscover(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker != nil {
		h.State.Worker.SignalDiscovery()
	}

	resp := struct {
		Note string `json:"note"`
	}{
		Note: "discovery signaled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// peerRecord is the wire shape of one known peer.
type peerRecord struct {
	URL        string `json:"url"`
	LastSeen   int64  `json:"lastSeen"`
	Height     uint64 `json:"height"`
	Difficulty int    `json:"difficulty"`
	Healthy    bool   `json:"healthy"`
}

// =============================================================================

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
