// This program is a wallet for talking to a chainlite node.
package main

import "github.com/chainlite/node/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
