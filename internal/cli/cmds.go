package cli

func regCommands() {
	//Wallet
	rootCmd.AddCommand(createWalletCmd)
	rootCmd.AddCommand(listAddressesCmd)

	//Chain
	rootCmd.AddCommand(createBlockchainCmd)
	rootCmd.AddCommand(getBalanceCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(printChainCmd)
	rootCmd.AddCommand(reindexUTXOCmd)
}
