// Package netgrp maintains the group of handlers for node to node access.
package netgrp

import (
	"context"
	"net/http"

	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/state"
	"github.com/ekehi/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// ReceiveNewBlock takes a block produced by a peer and attempts to append
// it to the local chain. A block that does not line up with the tip is
// rejected silently; the periodic sync reconciles deeper disagreement.
func (h Handlers) ReceiveNewBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return database.NewError(database.KindUnsupported, "unable to decode payload: %s", err)
	}

	if err := h.State.AcceptPeerBlock(block); err != nil {
		h.Log.Infow("block rejected", "traceid", v.TraceID, "block", block.Hash, "reason", err)

		resp := struct {
			Note string `json:"note"`
		}{
			Note: "rejected",
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}

	resp := struct {
		Note     string         `json:"note"`
		NewBlock database.Block `json:"newBlock"`
	}{
		Note:     "accepted",
		NewBlock: block,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RegisterAndBroadcastNode admits a new node locally, relays it to every
// known peer and hands the full peer list back to the new node.
func (h Handlers) RegisterAndBroadcastNode(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		NewNodeURL string `json:"newNodeUrl"`
	}
	if err := web.Decode(r, &body); err != nil {
		return database.NewError(database.KindUnsupported, "unable to decode payload: %s", err)
	}

	note := "node registered and broadcast"
	if err := h.State.AddKnownPeer(body.NewNodeURL); err != nil {
		note = err.Error()
	}

	h.State.NetShareNewPeer(body.NewNodeURL)

	resp := struct {
		Note string `json:"note"`
	}{
		Note: note,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RegisterNode admits a single node into the peer set.
func (h Handlers) RegisterNode(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		NewNodeURL string `json:"newNodeUrl"`
	}
	if err := web.Decode(r, &body); err != nil {
		return database.NewError(database.KindUnsupported, "unable to decode payload: %s", err)
	}

	note := "node registered"
	if err := h.State.AddKnownPeer(body.NewNodeURL); err != nil {
		note = err.Error()
	}

	resp := struct {
		Note string `json:"note"`
	}{
		Note: note,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RegisterNodesBulk admits a set of nodes into the peer set. A new node
// receives this call after announcing itself to the network.
func (h Handlers) RegisterNodesBulk(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var body struct {
		AllNetworkNodes []string `json:"allNetworkNodes"`
	}
	if err := web.Decode(r, &body); err != nil {
		return database.NewError(database.KindUnsupported, "unable to decode payload: %s", err)
	}

	var added int
	for _, url := range body.AllNetworkNodes {
		if err := h.State.AddKnownPeer(url); err == nil {
			added++
		}
	}

	resp := struct {
		Note  string `json:"note"`
		Added int    `json:"added"`
	}{
		Note:  "bulk registration successful",
		Added: added,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
