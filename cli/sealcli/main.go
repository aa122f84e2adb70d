package main

import (
	"log"

	"github.com/frankonly/blockseal/cli"
)

func main() {
	if err := cli.Init(); err != nil {
		log.Fatalf("failed to initialize sealcli: %v", err)
	}

	cli.Execute()
}
