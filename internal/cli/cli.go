package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tcfw/utxochain/internal/config"
	istorage "github.com/tcfw/utxochain/internal/storage"
	iwallet "github.com/tcfw/utxochain/internal/wallet"
	"github.com/tcfw/utxochain/pkg/chain"
)

var (
	rootCmd = &cobra.Command{
		Use:               "utxochain",
		Short:             "A minimal proof-of-work UTXO ledger",
		PersistentPreRunE: loadConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase verbosity")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the chain database")
	rootCmd.PersistentFlags().Uint("difficulty", 0, "proof-of-work difficulty in leading zero bits")
	rootCmd.PersistentFlags().String("wallet-file", "", "wallet keystore file")

	viper.BindPFlag(config.Cfg_verbose, rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag(config.Cfg_dataDir, rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag(config.Cfg_chain_difficulty, rootCmd.PersistentFlags().Lookup("difficulty"))
	viper.BindPFlag(config.Cfg_wallet_file, rootCmd.PersistentFlags().Lookup("wallet-file"))
}

func Execute() error {
	regCommands()

	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.GetConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	cfg = c

	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM so long mining runs can be
// interrupted. Cancelling it stops signal delivery to the context.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore() (*istorage.PebbleStore, error) {
	if err := os.MkdirAll(cfg.DataDir(), 0700); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}

	return istorage.NewPebbleStore(cfg.ChainDir())
}

func openWallets() (*iwallet.FileStore, error) {
	return iwallet.NewFileStore(cfg.Wallet().File)
}

// loadChain binds to the chain in the configured store. The caller closes the
// returned store.
func loadChain(ctx context.Context) (*chain.Blockchain, *istorage.PebbleStore, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	bc, err := chain.LoadBlockchain(ctx, s, cfg.Chain().Options()...)
	if err != nil {
		s.Close()
		if errors.Is(err, chain.ErrNoBlockchain) {
			return nil, nil, errors.Wrap(err, "run createblockchain first")
		}
		return nil, nil, err
	}

	return bc, s, nil
}
