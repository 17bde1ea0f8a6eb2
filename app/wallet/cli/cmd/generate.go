package cmd

import (
	"fmt"
	"log"

	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new private key",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	if err := crypto.SaveECDSA(getPrivateKeyPath(), privateKey); err != nil {
		log.Fatal(err)
	}

	address, err := ekehi.DeriveAddress(crypto.FromECDSA(privateKey))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("key :", getPrivateKeyPath())
	fmt.Println("addr:", address)
}
