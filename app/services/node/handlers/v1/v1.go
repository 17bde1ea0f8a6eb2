// Package v1 contains the full set of handler functions and routes
// supported by the web api.
package v1

import (
	"net/http"

	"github.com/ekehi/blockchain/app/services/node/handlers/v1/netgrp"
	"github.com/ekehi/blockchain/app/services/node/handlers/v1/nodegrp"
	"github.com/ekehi/blockchain/foundation/blockchain/state"
	"github.com/ekehi/blockchain/foundation/events"
	"github.com/ekehi/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// Routes binds the full route table. The paths are wire compatible with
// the other node implementations on the network, so they live at the root
// rather than under a version group.
func Routes(app *web.App, cfg Config) {
	ndg := nodegrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, "", "/blockchain", ndg.Blockchain)
	app.Handle(http.MethodGet, "", "/stats", ndg.Stats)
	app.Handle(http.MethodPost, "", "/transaction", ndg.SubmitTransaction)
	app.Handle(http.MethodPost, "", "/transaction/broadcast", ndg.BroadcastTransaction)
	app.Handle(http.MethodPost, "", "/transaction/send", ndg.BroadcastTransaction)
	app.Handle(http.MethodGet, "", "/mine", ndg.Mine)
	app.Handle(http.MethodPost, "", "/mining/start", ndg.MiningStart)
	app.Handle(http.MethodPost, "", "/mining/stop", ndg.MiningStop)
	app.Handle(http.MethodGet, "", "/mining/status", ndg.MiningStatus)
	app.Handle(http.MethodGet, "", "/block/:hash", ndg.BlockByHash)
	app.Handle(http.MethodGet, "", "/transaction/:id", ndg.TransactionByID)
	app.Handle(http.MethodGet, "", "/address/:addr", ndg.AddressData)
	app.Handle(http.MethodGet, "", "/api/network/peers", ndg.NetworkPeers)
	app.Handle(http.MethodPost, "", "/api/network/discover", ndg.NetworkDiscover)
	app.Handle(http.MethodGet, "", "/events", ndg.Events)

	ntg := netgrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodPost, "", "/receive-new-block", ntg.ReceiveNewBlock)
	app.Handle(http.MethodPost, "", "/register-and-broadcast-node", ntg.RegisterAndBroadcastNode)
	app.Handle(http.MethodPost, "", "/register-node", ntg.RegisterNode)
	app.Handle(http.MethodPost, "", "/register-nodes-bulk", ntg.RegisterNodesBulk)
}
