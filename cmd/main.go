package main

import (
	"os"

	"github.com/tcfw/utxochain/internal/cli"
	"github.com/tcfw/utxochain/internal/utils/logging"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
