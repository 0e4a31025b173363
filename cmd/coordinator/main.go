// Command coordinator runs the coordination core: the executor
// gateway, the content-change stream server, and the scheduler that
// derives tasks from namespace/graph/content commands. It also
// generates the SQL migrations the chosen State Store backend needs
// before the process can start against a durable database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Coordination core for the extraction platform",
	Long:  "coordinator runs namespace/graph state, task scheduling, executor management, and the content-change stream for a distributed content-extraction platform.",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
