package nodegrp

import (
	"github.com/ekehi/blockchain/foundation/validate"
	"github.com/shopspring/decimal"
)

// newTx is the client payload for creating and broadcasting a transaction.
type newTx struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Sender    string          `json:"sender" validate:"required"`
	Recipient string          `json:"recipient" validate:"required"`
	Fee       decimal.Decimal `json:"fee"`
	Network   string          `json:"network"`
}

// Validate checks the payload against its declared tags.
func (app newTx) Validate() error {
	return validate.Check(app)
}
