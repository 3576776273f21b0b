package main

import (
	"log"

	"SyncFM/cmd"
)

func main() {
	cmd.Execute()
	log.Println("Application command execution finished or server started.")
}
