package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ekehi/blockchain/foundation/keystore"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	sendTo     string
	sendAmount string
	sendFee    string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transaction through the node",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "Recipient address.")
	sendCmd.Flags().StringVarP(&sendAmount, "value", "v", "0", "Amount to send.")
	sendCmd.Flags().StringVarP(&sendFee, "fee", "f", "0.001", "Fee to attach.")
}

func sendRun(cmd *cobra.Command, args []string) {
	from, err := keystore.DeriveAddressFromFile(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	amount, err := decimal.NewFromString(sendAmount)
	if err != nil {
		log.Fatal(err)
	}
	fee, err := decimal.NewFromString(sendFee)
	if err != nil {
		log.Fatal(err)
	}

	payload := struct {
		Amount    decimal.Decimal `json:"amount"`
		Sender    string          `json:"sender"`
		Recipient string          `json:"recipient"`
		Fee       decimal.Decimal `json:"fee"`
	}{
		Amount:    amount,
		Sender:    from,
		Recipient: sendTo,
		Fee:       fee,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/transaction/send", nodeURL), "application/json", bytes.NewReader(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(body))
}
