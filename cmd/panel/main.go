package main

import (
	"os"

	"tg_moderation_panel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
