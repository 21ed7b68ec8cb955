package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Wallet struct {
	File string
}

const (
	Cfg_wallet_file = "wallet.file"
)

var (
	walletDefaults = map[string]interface{}{
		Cfg_wallet_file: "$HOME/.utxochain/wallet.yaml",
	}
)

func init() {
	for k, v := range walletDefaults {
		viper.SetDefault(k, v)
	}
}

func buildWalletConfig() (*Wallet, error) {
	return &Wallet{
		File: expandPath(viper.GetString(Cfg_wallet_file)),
	}, nil
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		p = "$HOME" + p[1:]
	}

	return os.ExpandEnv(p)
}
