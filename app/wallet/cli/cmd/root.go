// Package cmd contains wallet app
package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainlite/node/foundation/blockchain/peer"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	nodeURL     string
	timeout     time.Duration
)

const (
	keyExtenstion = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Path to the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "How long to wait for the node.")
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Simple wallet for a chainlite node",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtenstion) {
		accountName += keyExtenstion
	}

	return filepath.Join(accountPath, accountName)
}

// endpoint returns the url of the path on the configured node.
func endpoint(path string) string {
	host, err := peer.Normalize(nodeURL)
	if err != nil {
		log.Fatal(err)
	}

	return peer.New(host).URL(path)
}

// send performs the call against the configured node.
func send(method string, path string, dataSend any, dataRecv any) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return peer.NewClient().Send(ctx, method, endpoint(path), dataSend, dataRecv)
}
