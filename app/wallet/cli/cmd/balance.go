package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/ekehi/blockchain/foundation/keystore"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Query the node for the account balance",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	address, err := keystore.DeriveAddressFromFile(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Get(fmt.Sprintf("%s/address/%s", nodeURL, address))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var result struct {
		AddressData struct {
			Balance          json.Number `json:"balance"`
			TotalSent        json.Number `json:"totalSent"`
			TotalReceived    json.Number `json:"totalReceived"`
			TransactionCount int         `json:"transactionCount"`
		} `json:"addressData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Fatal(err)
	}

	fmt.Println("addr    :", address)
	fmt.Println("balance :", result.AddressData.Balance)
	fmt.Println("sent    :", result.AddressData.TotalSent)
	fmt.Println("received:", result.AddressData.TotalReceived)
	fmt.Println("txs     :", result.AddressData.TransactionCount)
}
