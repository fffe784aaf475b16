package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Ask the node to resolve its chain against its peers.",
	Run: func(cmd *cobra.Command, args []string) {
		var res struct {
			Length int `json:"chain_length"`
			Peers  []struct {
				Peer struct {
					Host string `json:"host"`
				} `json:"peer"`
				Length int    `json:"length"`
				Status string `json:"status"`
			} `json:"peers"`
		}
		if err := send(http.MethodGet, "/v1/nodes/resolve", nil, &res); err != nil {
			log.Fatal(err)
		}

		fmt.Println("chain length:", res.Length)
		for _, p := range res.Peers {
			fmt.Printf("  %s length[%d] %s\n", p.Peer.Host, p.Length, p.Status)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
