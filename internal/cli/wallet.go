package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	createWalletCmd = &cobra.Command{
		Use:   "createwallet",
		Short: "Generate a new key pair and print its address",
		RunE:  runCreateWallet,
	}

	listAddressesCmd = &cobra.Command{
		Use:   "listaddresses",
		Short: "List the addresses held in the wallet file",
		RunE:  runListAddresses,
	}
)

func runCreateWallet(cmd *cobra.Command, args []string) error {
	ws, err := openWallets()
	if err != nil {
		return errors.Wrap(err, "opening wallets")
	}

	w, err := ws.Create()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Your new address: %s\n", w.Address())

	return nil
}

func runListAddresses(cmd *cobra.Command, args []string) error {
	ws, err := openWallets()
	if err != nil {
		return errors.Wrap(err, "opening wallets")
	}

	addrs, err := ws.Addresses()
	if err != nil {
		return err
	}

	for _, a := range addrs {
		fmt.Fprintln(cmd.OutOrStdout(), a)
	}

	return nil
}
