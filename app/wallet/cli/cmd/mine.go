package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var mineSelf bool

// mineCmd represents the mine command
var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Ask the node to mine a block.",
	Run: func(cmd *cobra.Command, args []string) {
		var req any
		if !mineSelf {
			req = struct {
				MinerAddress string `json:"miner_address"`
			}{
				MinerAddress: loadAddress(),
			}
		}

		var mined struct {
			Block struct {
				Index uint64 `json:"index"`
				Hash  string `json:"hash"`
			} `json:"block"`
			Miner  string  `json:"miner"`
			Reward float64 `json:"reward"`
		}
		if err := send(http.MethodPost, "/v1/mine", req, &mined); err != nil {
			log.Fatal(err)
		}

		fmt.Printf("block[%d] hash[%s] reward[%v] to %s\n", mined.Block.Index, mined.Block.Hash, mined.Reward, mined.Miner)
	},
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().BoolVar(&mineSelf, "node", false, "Credit the reward to the node instead of the wallet.")
}
