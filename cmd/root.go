package cmd

import (
	"fmt"
	"log"
	"os"

	"SyncFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "syncfm_server",
	Short: "SyncFM is a listen-together audio room service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting SyncFM server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
