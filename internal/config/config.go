package config

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/tcfw/utxochain/internal/utils/logging"
)

const (
	Cfg_verbose = "verbose"
	Cfg_dataDir = "data_dir"
)

var (
	defaults = map[string]interface{}{
		Cfg_verbose: false,
		Cfg_dataDir: "$HOME/.utxochain/data",
	}
)

func init() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

func GetConfig() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigName("utxochain")
	viper.AddConfigPath("/etc/utxochain/")
	viper.AddConfigPath("$HOME/.utxochain")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("UTXOCHAIN")
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
			logging.Entry().Debug("no config found")
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	c := &Config{
		dataDir: expandPath(viper.GetString(Cfg_dataDir)),
	}

	c.chain, err = buildChainConfig()
	if err != nil {
		return nil, errors.Wrap(err, "chain config")
	}

	c.wallet, err = buildWalletConfig()
	if err != nil {
		return nil, errors.Wrap(err, "wallet config")
	}

	if viper.GetBool(Cfg_verbose) {
		logging.SetLevel(logrus.DebugLevel)
		logging.Entry().WithField("level", "debug").Debug("setting log level")
	}

	return c, nil
}

type Config struct {
	dataDir string
	chain   *Chain
	wallet  *Wallet
}

// DataDir is where the chain store lives
func (c *Config) DataDir() string {
	return c.dataDir
}

func (c *Config) ChainDir() string {
	return filepath.Join(c.dataDir, "chain")
}

func (c *Config) Chain() *Chain {
	return c.chain
}

func (c *Config) Wallet() *Wallet {
	return c.wallet
}
