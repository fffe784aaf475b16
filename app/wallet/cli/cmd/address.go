package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// addressCmd represents the address command
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print address for the specific wallet",
	Run:   addressRun,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func addressRun(cmd *cobra.Command, args []string) {
	fmt.Println(loadAddress())
}

// loadAddress returns the address of the configured private key.
func loadAddress() string {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	return crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
}
