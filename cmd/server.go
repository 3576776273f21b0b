package cmd

import (
	"SyncFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动SyncFM服务器",
	Long:  `启动SyncFM一起听房间服务器，提供房间API和WebSocket同步服务`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
