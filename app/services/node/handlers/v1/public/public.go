// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/chainlite/node/business/sys/metrics"
	v1 "github.com/chainlite/node/business/web/v1"
	"github.com/chainlite/node/foundation/blockchain/state"
	"github.com/chainlite/node/foundation/events"
	"github.com/chainlite/node/foundation/nameservice"
	"github.com/chainlite/node/foundation/validate"
	"github.com/chainlite/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Info returns the name of the service and the endpoints it provides.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	data := info{
		Name:        "ChainLite",
		Version:     "1.0.0",
		Description: "A minimal blockchain implementation with RESTful API",
		Host:        h.State.Host(),
		Miner:       h.State.MinerAddress(),
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeInfo, "Welcome to ChainLite - A Minimal Blockchain API", data)
	resp.Meta = map[string]any{
		"endpoints": []endpoint{
			{Method: http.MethodGet, Path: "/v1/chain", Description: "View the entire blockchain"},
			{Method: http.MethodGet, Path: "/v1/blocks/height/:height", Description: "View a block by height"},
			{Method: http.MethodGet, Path: "/v1/blocks/hash/:hash", Description: "View a block by hash"},
			{Method: http.MethodPost, Path: "/v1/transactions", Description: "Create a new transaction"},
			{Method: http.MethodGet, Path: "/v1/transactions/pending", Description: "View the pending transactions"},
			{Method: http.MethodGet, Path: "/v1/transactions/address/:address", Description: "View the transactions of an address"},
			{Method: http.MethodGet, Path: "/v1/balances/:address", Description: "View the balance of an address"},
			{Method: http.MethodGet, Path: "/v1/mine", Description: "Mine a new block"},
			{Method: http.MethodPost, Path: "/v1/nodes/register", Description: "Register new nodes"},
			{Method: http.MethodGet, Path: "/v1/nodes", Description: "List the registered nodes"},
			{Method: http.MethodPost, Path: "/v1/nodes/unregister", Description: "Unregister nodes"},
			{Method: http.MethodGet, Path: "/v1/nodes/resolve", Description: "Resolve chain conflicts"},
			{Method: http.MethodGet, Path: "/v1/events", Description: "Stream ledger events over a websocket"},
		},
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

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

	// The connection is hijacked so the logger only sees this status.
	v.StatusCode = http.StatusSwitchingProtocols

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(evt); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a new transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nt newTx
	if err := web.Decode(r, &nt); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.Log.Infow("add tran", "traceid", v.TraceID, "sender", nt.Sender, "recipient", nt.Recipient, "amount", nt.Amount)

	tx, err := h.State.SubmitTransaction(nt.toDBTx())
	if err != nil {
		return fmt.Errorf("submitting transaction: %w", err)
	}

	data := txCreated{
		Transaction: tx,
		BlockIndex:  h.State.QueryLatestBlock().Index + 1,
	}

	desc := fmt.Sprintf("Transaction will be added to Block %d", data.BlockIndex)
	resp := v1.NewResponse(http.StatusCreated, v1.CodeTxCreated, desc, data)

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Mine mines the pending transactions into a new block. The reward goes to
// the miner_address query parameter or body field when provided, otherwise
// to this node. The query parameter wins when both are sent.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var mr mineReq
	if err := decodeOptional(r, &mr); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	miner := mr.MinerAddress
	if q := r.URL.Query().Get("miner_address"); q != "" {
		miner = q
	}

	block, err := h.State.MineNewBlock(miner)
	if err != nil {
		return fmt.Errorf("mining block: %w", err)
	}
	metrics.AddBlocksMined()

	if miner == "" {
		miner = h.State.MinerAddress()
	}

	data := mined{
		Block:  block,
		Miner:  miner,
		Reward: h.State.Genesis().MiningReward,
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeBlockMined, "New block successfully mined", data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Chain returns the full chain held by this node.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	data := chainOf(h.State.QueryChain())

	resp := v1.NewResponse(http.StatusOK, v1.CodeChain, "Blockchain retrieved successfully", data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockByHeight returns the block at the specified height.
func (h Handlers) BlockByHeight(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := strconv.ParseUint(web.Param(r, "height"), 10, 64)
	if err != nil {
		return v1.NewRequestError(fmt.Errorf("invalid height %q", web.Param(r, "height")), http.StatusBadRequest)
	}

	block, err := h.State.QueryBlockByHeight(height)
	if err != nil {
		return fmt.Errorf("block[%d]: %w", height, err)
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeBlock, "Block retrieved successfully", block)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	block, err := h.State.QueryBlockByHash(hash)
	if err != nil {
		return fmt.Errorf("block[%s]: %w", hash, err)
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeBlock, "Block retrieved successfully", block)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of pending transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	trans := h.State.QueryMempool()

	data := pending{
		Transactions: trans,
		Count:        len(trans),
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodePending, "Pending transactions retrieved successfully", data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// TransactionsByAddress returns the confirmed transactions an address took
// part in, newest first. The limit and before query parameters page the
// results.
func (h Handlers) TransactionsByAddress(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")
	if !validate.IsAddress(address) {
		return v1.NewRequestError(fmt.Errorf("invalid address %q", address), http.StatusBadRequest)
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	before, err := queryInt(r, "before")
	if err != nil {
		return err
	}

	trans, err := h.State.QueryTransactionsByAddress(address, int(limit), before)
	if err != nil {
		return fmt.Errorf("transactions[%s]: %w", address, err)
	}

	data := addressTxs{
		Address:      address,
		Name:         h.NS.Lookup(address),
		Transactions: trans,
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeAddressTxs, "Transactions retrieved successfully", data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balance returns the confirmed balance of an address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")
	if !validate.IsAddress(address) {
		return v1.NewRequestError(fmt.Errorf("invalid address %q", address), http.StatusBadRequest)
	}

	data := balance{
		Address: address,
		Name:    h.NS.Lookup(address),
		Balance: h.State.QueryBalance(address),
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeBalance, "Balance retrieved successfully", data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RegisterNodes adds nodes to the set of known peers. An empty list registers
// the calling node at the port this node is served on.
func (h Handlers) RegisterNodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nl nodeList
	if err := decodeOptional(r, &nl); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	peers, err := h.State.RegisterNodes(nl.Nodes, fallback(r))
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	data := nodes{
		Nodes:      hosts(peers),
		TotalNodes: len(h.State.KnownPeers()),
	}

	desc := fmt.Sprintf("Successfully registered %d node(s)", len(peers))
	resp := v1.NewResponse(http.StatusCreated, v1.CodeNodesAdded, desc, data)

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// UnregisterNodes removes nodes from the set of known peers.
func (h Handlers) UnregisterNodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nl nodeList
	if err := decodeOptional(r, &nl); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	h.State.UnregisterNodes(nl.Nodes)

	known := h.State.KnownPeers()
	data := nodes{
		Nodes:      hosts(known),
		TotalNodes: len(known),
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeNodesRemoved, "Nodes unregistered", data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Nodes returns the set of known peers.
func (h Handlers) Nodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	known := h.State.KnownPeers()

	data := nodes{
		Nodes:      hosts(known),
		TotalNodes: len(known),
	}

	resp := v1.NewResponse(http.StatusOK, v1.CodeNodes, "List of registered nodes", data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Resolve runs consensus against the known peers and reports whether the
// local chain was replaced.
func (h Handlers) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	res, err := h.State.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving chain: %w", err)
	}

	data := resolved{
		Chain: chainOf(res.Chain),
		Peers: res.Reports,
	}

	code, desc := v1.CodeAuthoritative, "Local chain is authoritative (no longer chain found)"
	if res.Replaced {
		metrics.AddChainReplacements()
		code, desc = v1.CodeChainReplaced, "Chain was replaced with a longer valid chain"
	}

	resp := v1.NewResponse(http.StatusOK, code, desc, data)
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// decodeOptional decodes the body into val when one was sent.
func decodeOptional(r *http.Request, val any) error {
	if err := web.Decode(r, val); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// fallback returns the address of the calling node assuming it serves on
// the same port this node was reached on.
func fallback(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}

	port := "80"
	if _, p, err := net.SplitHostPort(r.Host); err == nil {
		port = p
	}

	return net.JoinHostPort(ip, port)
}

func queryInt(r *http.Request, key string) (int64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, v1.NewRequestError(fmt.Errorf("invalid %s %q", key, s), http.StatusBadRequest)
	}

	return n, nil
}
