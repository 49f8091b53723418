package main

import (
	"os"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
