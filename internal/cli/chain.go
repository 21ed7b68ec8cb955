package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tcfw/utxochain/internal/utils/logging"
	"github.com/tcfw/utxochain/pkg/chain"
	"github.com/tcfw/utxochain/pkg/cryptography"
)

var (
	createBlockchainCmd = &cobra.Command{
		Use:   "createblockchain",
		Short: "Create a blockchain and send the genesis reward to an address",
		RunE:  runCreateBlockchain,
	}

	getBalanceCmd = &cobra.Command{
		Use:   "getbalance",
		Short: "Get the balance of an address",
		RunE:  runGetBalance,
	}

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Send coins from a wallet address to another address",
		RunE:  runSend,
	}

	printChainCmd = &cobra.Command{
		Use:   "printchain",
		Short: "Print every block from the tip back to genesis",
		RunE:  runPrintChain,
	}

	reindexUTXOCmd = &cobra.Command{
		Use:   "reindexutxo",
		Short: "Rebuild the UTXO index from the chain",
		RunE:  runReindexUTXO,
	}
)

func init() {
	createBlockchainCmd.Flags().StringP("address", "a", "", "address receiving the genesis reward")
	createBlockchainCmd.MarkFlagRequired("address")

	getBalanceCmd.Flags().StringP("address", "a", "", "address to query")
	getBalanceCmd.MarkFlagRequired("address")

	sendCmd.Flags().String("from", "", "wallet address to send from")
	sendCmd.Flags().String("to", "", "address to send to")
	sendCmd.Flags().Int64("amount", 0, "amount to send")
	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")

	printChainCmd.Flags().Bool("verify", false, "also verify every transaction signature")
}

func runCreateBlockchain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	address, _ := cmd.Flags().GetString("address")
	if !cryptography.ValidateAddress(address) {
		return errors.Wrap(cryptography.ErrInvalidAddress, address)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	bc, err := chain.CreateBlockchain(ctx, s, address, cfg.Chain().Options()...)
	if err != nil {
		return err
	}

	if err := chain.NewUTXOSet(bc).ReIndex(ctx); err != nil {
		return err
	}

	tip, err := bc.Tip(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Done! Tip: %s\n", tip)

	return nil
}

func runGetBalance(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	address, _ := cmd.Flags().GetString("address")

	pkh, err := cryptography.PubKeyHashFromAddress(address)
	if err != nil {
		return err
	}

	bc, s, err := loadChain(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	balance, err := chain.NewUTXOSet(bc).Balance(ctx, pkh)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Balance of '%s': %d\n", address, balance)

	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	amount, _ := cmd.Flags().GetInt64("amount")

	ws, err := openWallets()
	if err != nil {
		return errors.Wrap(err, "opening wallets")
	}

	w, err := ws.Find(from)
	if err != nil {
		return err
	}

	bc, s, err := loadChain(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := chain.Send(ctx, chain.NewUTXOSet(bc), w, to, amount)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Success! Block: %s\n", b.Hash)

	return nil
}

func runPrintChain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	verify, _ := cmd.Flags().GetBool("verify")

	bc, s, err := loadChain(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	blocks, err := bc.Blocks(ctx)
	if err != nil {
		return err
	}

	v := chain.NewTxValidator(bc)
	out := cmd.OutOrStdout()

	for _, st := range blocks {
		fmt.Fprint(out, st.Block.String())
		fmt.Fprintf(out, "PoW: %t\n", st.Valid)

		if verify {
			if err := v.IsBlockValid(ctx, st.Block); err != nil {
				logging.WithError(err).WithField("block", st.Block.Hash).Warn("block failed validation")
				fmt.Fprintln(out, "Valid: false")
			} else {
				fmt.Fprintln(out, "Valid: true")
			}
		}

		fmt.Fprintln(out)
	}

	return nil
}

func runReindexUTXO(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bc, s, err := loadChain(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	set := chain.NewUTXOSet(bc)
	if err := set.ReIndex(ctx); err != nil {
		return err
	}

	n, err := set.CountTransactions(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Done! There are %d transactions in the UTXO set.\n", n)

	return nil
}
