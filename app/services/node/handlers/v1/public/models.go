package public

import (
	"github.com/chainlite/node/foundation/blockchain/consensus"
	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/peer"
	"github.com/chainlite/node/foundation/validate"
)

type info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Host        string `json:"host"`
	Miner       string `json:"miner"`
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// newTx is what a client submits to create a transaction. A hash sent by
// the client is accepted and discarded since the ledger computes its own.
type newTx struct {
	Sender    string  `json:"sender" validate:"required,address"`
	Recipient string  `json:"recipient" validate:"required,address"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Signature string  `json:"signature" validate:"required"`
	TimeStamp int64   `json:"timestamp" validate:"required"`
	Hash      string  `json:"hash"`
}

// Validate checks the data in the model is considered clean.
func (nt newTx) Validate() error {
	return validate.Check(nt)
}

func (nt newTx) toDBTx() database.Tx {
	return database.Tx{
		Sender:    nt.Sender,
		Recipient: nt.Recipient,
		Amount:    nt.Amount,
		Signature: nt.Signature,
		TimeStamp: nt.TimeStamp,
	}
}

// mineReq is the optional body of a mine request.
type mineReq struct {
	MinerAddress string `json:"miner_address"`
}

type txCreated struct {
	Transaction database.Tx `json:"transaction"`
	BlockIndex  uint64      `json:"block_index"`
}

type mined struct {
	Block  database.Block `json:"block"`
	Miner  string         `json:"miner"`
	Reward float64        `json:"reward"`
}

type pending struct {
	Transactions []database.Tx `json:"transactions"`
	Count        int           `json:"count"`
}

type addressTxs struct {
	Address      string             `json:"address"`
	Name         string             `json:"name,omitempty"`
	Transactions []database.BlockTx `json:"transactions"`
}

type balance struct {
	Address string  `json:"address"`
	Name    string  `json:"name,omitempty"`
	Balance float64 `json:"balance"`
}

// nodeList is the body for registering and unregistering peers.
type nodeList struct {
	Nodes []string `json:"nodes"`
}

type nodes struct {
	Nodes      []string `json:"nodes"`
	TotalNodes int      `json:"total_nodes"`
}

type resolved struct {
	peer.Chain
	Peers []consensus.Report `json:"peers"`
}

func hosts(peers []peer.Peer) []string {
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.Host
	}
	return out
}

func chainOf(blocks []database.Block) peer.Chain {
	return peer.Chain{
		Chain:             blocks,
		Length:            len(blocks),
		TotalTransactions: database.TotalTransactions(blocks),
	}
}
