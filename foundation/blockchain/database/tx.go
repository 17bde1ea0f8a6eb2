package database

import (
	"strings"
	"time"

	"github.com/ekehi/blockchain/foundation/blockchain/ekehi"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tx is the transactional information between two parties. The consensus
// relevant fields are hashed into the containing block; the activity map
// carries annotations that are ignored by consensus.
type Tx struct {
	Amount        decimal.Decimal `json:"amount"`
	Sender        string          `json:"sender"`
	Recipient     string          `json:"recipient"`
	Fee           decimal.Decimal `json:"fee"`
	TransactionID string          `json:"transactionId"`
	Timestamp     int64           `json:"timestamp"`
	Network       string          `json:"network,omitempty"`
	Activity      map[string]any  `json:"activity,omitempty"`
}

// NewTx constructs a transaction with a fresh id and creation time.
func NewTx(amount decimal.Decimal, sender string, recipient string, fee decimal.Decimal) Tx {
	return Tx{
		Amount:        amount,
		Sender:        sender,
		Recipient:     recipient,
		Fee:           fee,
		TransactionID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Timestamp:     time.Now().UnixMilli(),
	}
}

// IsCoinbase reports whether the transaction is a mining reward.
func (tx Tx) IsCoinbase() bool {
	return tx.Sender == ekehi.CoinbaseSender
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return tx.Sender + ":" + tx.TransactionID
}

// =============================================================================

// checkTx applies the admission rules shared by the mempool and by full
// chain validation to a non-coinbase transaction. The sender balance is the
// balance at the point of validation.
func checkTx(tx Tx, senderBalance decimal.Decimal, minFee decimal.Decimal) error {
	if tx.TransactionID == "" {
		return NewError(KindInvalidTransaction, "transaction id is missing")
	}

	if !tx.Amount.IsPositive() {
		return NewError(KindInvalidTransaction, "amount must be positive, got %s", tx.Amount)
	}

	if tx.Fee.IsNegative() {
		return NewError(KindInvalidTransaction, "fee must not be negative, got %s", tx.Fee)
	}

	if tx.Sender == tx.Recipient {
		return NewError(KindInvalidTransaction, "sender and recipient must differ, got %s", tx.Sender)
	}

	if tx.Sender == ekehi.CoinbaseSender {
		return NewError(KindInvalidTransaction, "coinbase sender outside a mining reward")
	}

	if !ekehi.ValidateAddress(tx.Recipient) || ekehi.IsReservedSender(tx.Recipient) {
		return NewError(KindInvalidAddress, "recipient %q is not a valid address", tx.Recipient)
	}

	// System senders emit without a debit, so the fee floor and the balance
	// check only apply to regular senders.
	if ekehi.IsSystemSender(tx.Sender) {
		return nil
	}

	if !ekehi.ValidateAddress(tx.Sender) {
		return NewError(KindInvalidAddress, "sender %q is not a valid address", tx.Sender)
	}

	if tx.Fee.LessThan(minFee) {
		return NewError(KindInvalidTransaction, "fee %s below the minimum fee %s", tx.Fee, minFee)
	}

	if senderBalance.LessThan(tx.Amount.Add(tx.Fee)) {
		return NewError(KindInsufficientBalance, "balance %s below amount %s plus fee %s", senderBalance, tx.Amount, tx.Fee)
	}

	return nil
}
