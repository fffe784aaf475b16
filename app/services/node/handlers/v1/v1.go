// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/chainlite/node/app/services/node/handlers/v1/public"
	"github.com/chainlite/node/foundation/blockchain/state"
	"github.com/chainlite/node/foundation/events"
	"github.com/chainlite/node/foundation/nameservice"
	"github.com/chainlite/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, "", "/", pbl.Info)
	app.Handle(http.MethodGet, version, "/", pbl.Info)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/chain", pbl.Chain)
	app.Handle(http.MethodGet, version, "/blocks/height/:height", pbl.BlockByHeight)
	app.Handle(http.MethodGet, version, "/blocks/hash/:hash", pbl.BlockByHash)
	app.Handle(http.MethodPost, version, "/transactions", pbl.SubmitTransaction)
	app.Handle(http.MethodGet, version, "/transactions/pending", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/transactions/address/:address", pbl.TransactionsByAddress)
	app.Handle(http.MethodGet, version, "/balances/:address", pbl.Balance)
	app.Handle(http.MethodGet, version, "/mine", pbl.Mine)
	app.Handle(http.MethodPost, version, "/mine", pbl.Mine)
	app.Handle(http.MethodGet, version, "/nodes", pbl.Nodes)
	app.Handle(http.MethodPost, version, "/nodes/register", pbl.RegisterNodes)
	app.Handle(http.MethodPost, version, "/nodes/unregister", pbl.UnregisterNodes)
	app.Handle(http.MethodDelete, version, "/nodes", pbl.UnregisterNodes)
	app.Handle(http.MethodGet, version, "/nodes/resolve", pbl.Resolve)
}
