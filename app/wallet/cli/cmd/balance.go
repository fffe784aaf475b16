package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run: func(cmd *cobra.Command, args []string) {
		address := loadAddress()

		var bal struct {
			Balance float64 `json:"balance"`
		}
		if err := send(http.MethodGet, "/v1/balances/"+address, nil, &bal); err != nil {
			log.Fatal(err)
		}

		fmt.Println("For Address:", address)
		fmt.Println(bal.Balance)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
