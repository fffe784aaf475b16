package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/chainlite/node/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount float64
)

type newTx struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Signature string  `json:"signature"`
	TimeStamp int64   `json:"timestamp"`
}

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		sendWithDetails(privateKey)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address of the recipient.")
	sendCmd.Flags().Float64VarP(&amount, "amount", "v", 0, "Amount to send.")
}

func sendWithDetails(privateKey *ecdsa.PrivateKey) {
	tx := newTx{
		Sender:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		Recipient: to,
		Amount:    amount,
		TimeStamp: time.Now().UnixMilli(),
	}

	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		log.Fatal(err)
	}
	tx.Signature = sig

	var created struct {
		Transaction struct {
			Hash string `json:"hash"`
		} `json:"transaction"`
		BlockIndex uint64 `json:"block_index"`
	}
	if err := send(http.MethodPost, "/v1/transactions", tx, &created); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("tx[%s] will be added to block %d\n", created.Transaction.Hash, created.BlockIndex)
}
