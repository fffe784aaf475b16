package database

import (
	"fmt"

	"github.com/chainlite/node/foundation/validate"
)

// RewardSender is the sender recorded on the transaction that pays the
// miner of a block.
const RewardSender = "0"

// =============================================================================

// Tx is the transactional information between two parties. The fields are
// declared in lexical order of their JSON names since the JSON form is the
// input to both the transaction and the block hash.
type Tx struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Hash      string  `json:"hash"`
	Recipient string  `json:"recipient" validate:"required,address"`
	Sender    string  `json:"sender" validate:"required,address"`
	Signature string  `json:"signature" validate:"required"`
	TimeStamp int64   `json:"timestamp" validate:"required"`
}

// NewTx constructs a new transaction with its hash calculated. The
// transaction is validated before it is returned.
func NewTx(sender string, recipient string, amount float64, signature string, timeStamp int64) (Tx, error) {
	tx := Tx{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Signature: signature,
		TimeStamp: timeStamp,
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	tx.Hash = tx.ComputeHash()

	return tx, nil
}

// NewRewardTx constructs the transaction that credits the miner of a block.
func NewRewardTx(recipient string, amount float64, timeStamp int64) Tx {
	tx := Tx{
		Sender:    RewardSender,
		Recipient: recipient,
		Amount:    amount,
		TimeStamp: timeStamp,
	}
	tx.Hash = tx.ComputeHash()

	return tx
}

// Validate checks the transaction fields provided by a client. A failure
// is returned as validate.FieldErrors.
func (tx Tx) Validate() error {
	return validate.Check(tx)
}

// IsReward reports whether this is a mining reward transaction.
func (tx Tx) IsReward() bool {
	return tx.Sender == RewardSender
}

// ComputeHash returns the hash of the transaction content. Any hash carried
// by the value itself is not part of the input.
func (tx Tx) ComputeHash() string {
	hd := struct {
		Amount    float64 `json:"amount"`
		Recipient string  `json:"recipient"`
		Sender    string  `json:"sender"`
		Signature string  `json:"signature"`
		TimeStamp int64   `json:"timestamp"`
	}{
		Amount:    tx.Amount,
		Recipient: tx.Recipient,
		Sender:    tx.Sender,
		Signature: tx.Signature,
		TimeStamp: tx.TimeStamp,
	}

	return hash(hd)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s->%s:%g", tx.Sender, tx.Recipient, tx.Amount)
}

// =============================================================================

// BlockTx represents a confirmed transaction along with the block
// it was recorded in.
type BlockTx struct {
	Tx
	BlockIndex uint64 `json:"block_index"`
	BlockHash  string `json:"block_hash"`
}

// FilterTransactions walks the chain from the newest block backwards and
// returns the transactions where the address is the sender or recipient.
// Only transactions with a timestamp older than before are returned when
// before is greater than zero. A limit of zero or less means no limit.
func FilterTransactions(blocks []Block, address string, limit int, before int64) []BlockTx {
	var out []BlockTx

	for i := len(blocks) - 1; i >= 0; i-- {
		block := blocks[i]

		for j := len(block.Transactions) - 1; j >= 0; j-- {
			tx := block.Transactions[j]

			if tx.Sender != address && tx.Recipient != address {
				continue
			}

			if before > 0 && tx.TimeStamp >= before {
				continue
			}

			out = append(out, BlockTx{Tx: tx, BlockIndex: block.Index, BlockHash: block.Hash})
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}

	return out
}
