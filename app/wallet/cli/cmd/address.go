package cmd

import (
	"fmt"
	"log"

	"github.com/ekehi/blockchain/foundation/keystore"
	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address for the account",
	Run:   addressRun,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func addressRun(cmd *cobra.Command, args []string) {
	address, err := keystore.DeriveAddressFromFile(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(address)
}
