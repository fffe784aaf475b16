package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

// registerCmd represents the register command
var registerCmd = &cobra.Command{
	Use:   "register [node...]",
	Short: "Register nodes as peers of the node.",
	Run: func(cmd *cobra.Command, args []string) {
		body := struct {
			Nodes []string `json:"nodes"`
		}{
			Nodes: args,
		}

		var list struct {
			Nodes      []string `json:"nodes"`
			TotalNodes int      `json:"total_nodes"`
		}
		if err := send(http.MethodPost, "/v1/nodes/register", body, &list); err != nil {
			log.Fatal(err)
		}

		for _, n := range list.Nodes {
			fmt.Println("registered:", n)
		}
		fmt.Println("total nodes:", list.TotalNodes)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
