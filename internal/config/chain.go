package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/tcfw/utxochain/pkg/chain"
	"github.com/tcfw/utxochain/pkg/pow"
)

type Chain struct {
	Difficulty  uint
	GenesisData string
}

const (
	Cfg_chain_difficulty  = "chain.difficulty"
	Cfg_chain_genesisData = "chain.genesisData"
)

var (
	chainDefaults = map[string]interface{}{
		Cfg_chain_difficulty:  pow.DefaultBits,
		Cfg_chain_genesisData: chain.DefaultGenesisData,
	}
)

func init() {
	for k, v := range chainDefaults {
		viper.SetDefault(k, v)
	}
}

func buildChainConfig() (*Chain, error) {
	c := &Chain{}

	c.Difficulty = viper.GetUint(Cfg_chain_difficulty)
	if c.Difficulty == 0 || c.Difficulty >= 256 {
		return nil, errors.Errorf("difficulty must be between 1 and 255, got %d", c.Difficulty)
	}

	c.GenesisData = viper.GetString(Cfg_chain_genesisData)

	return c, nil
}

// Options returns the chain options matching the config
func (c *Chain) Options() []chain.Option {
	return []chain.Option{
		chain.WithDifficulty(c.Difficulty),
		chain.WithGenesisData(c.GenesisData),
	}
}
