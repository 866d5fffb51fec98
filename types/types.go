// Package types defines the wire records exchanged with a payment protocol
// server and the asset identities used to match them against a wallet.
package types

import "time"

// PaymentOption is one asset a merchant invoice accepts, as announced by the
// payment-options endpoint. Options are immutable once decoded.
type PaymentOption struct {
	// Chain is the protocol's top-level network ticker (e.g. "BTC", "ETH").
	Chain string `json:"chain"`

	// Currency names the asset on that chain. Equal to Chain for the
	// chain's native coin, a token ticker otherwise.
	Currency string `json:"currency"`

	// Network is the protocol's network label (e.g. "main", "test").
	Network string `json:"network"`

	// EstimatedAmount is the amount due in atomic units of the asset.
	EstimatedAmount float64 `json:"estimatedAmount"`

	// RequiredFeeRate is the minimum fee rate the server will accept.
	RequiredFeeRate float64 `json:"requiredFeeRate"`

	// MinerFee is the server's miner-fee estimate in atomic units.
	MinerFee float64 `json:"minerFee"`

	// Decimals is the asset's decimal precision.
	Decimals int `json:"decimals"`

	Selected bool `json:"selected"`
}

// OptionsResponse identifies an invoice and the assets it accepts.
type OptionsResponse struct {
	Time           time.Time       `json:"time"`
	Expires        time.Time       `json:"expires"`
	Memo           string          `json:"memo"`
	PaymentURL     string          `json:"paymentUrl"`
	PaymentID      string          `json:"paymentId"`
	PaymentOptions []PaymentOption `json:"paymentOptions"`
}

// InstructionOutput is a single payment target within an instruction. The
// server places the merchant's primary payment first on the wire.
type InstructionOutput struct {
	Amount    float64 `json:"amount"`
	Address   string  `json:"address"`
	InvoiceID *string `json:"invoiceID,omitempty"`
}

// InvoiceInstruction describes how one invoice payment must be built.
// UTXO chains carry Outputs; account chains additionally carry To, Value,
// Data and GasPrice.
type InvoiceInstruction struct {
	Type            string              `json:"type"`
	RequiredFeeRate *float64            `json:"requiredFeeRate,omitempty"`
	Outputs         []InstructionOutput `json:"outputs,omitempty"`
	Value           *float64            `json:"value,omitempty"`
	To              *string             `json:"to,omitempty"`
	Data            *string             `json:"data,omitempty"`
	GasPrice        *float64            `json:"gasPrice,omitempty"`
}

// InvoiceResponse is the payment-request endpoint's answer for one
// (chain, currency) pair.
type InvoiceResponse struct {
	Time         time.Time            `json:"time"`
	Expires      time.Time            `json:"expires"`
	Memo         string               `json:"memo"`
	PaymentURL   string               `json:"paymentUrl"`
	PaymentID    string               `json:"paymentId"`
	Chain        string               `json:"chain"`
	Network      string               `json:"network"`
	Currency     *string              `json:"currency,omitempty"`
	Instructions []InvoiceInstruction `json:"instructions"`
}

// CheckInstructions enforces the single-instruction shape this client
// supports. Multi-instruction invoices and instructions without outputs are
// fatal before any spend construction.
func (r *InvoiceResponse) CheckInstructions() error {
	if len(r.Instructions) > 1 {
		return &ProtocolError{
			Code:    ErrMultiInstruction,
			Message: "invoice carries more than one payment instruction",
		}
	}
	if len(r.Instructions) == 1 && len(r.Instructions[0].Outputs) == 0 {
		return &ProtocolError{
			Code:    ErrEmptyOutputInvoice,
			Message: "invoice instruction has no outputs",
		}
	}
	return nil
}

// ProtocolTransaction is a transaction hex submitted to, or echoed by, the
// verification and payment endpoints.
type ProtocolTransaction struct {
	Tx           string `json:"tx"`
	WeightedSize int    `json:"weightedSize,omitempty"`
}

// VerificationPayment is the server's echo of a submitted payment.
type VerificationPayment struct {
	Currency     string                `json:"currency,omitempty"`
	Chain        string                `json:"chain,omitempty"`
	Transactions []ProtocolTransaction `json:"transactions"`
}

// VerificationResponse is the payment-verification endpoint's answer. The
// echoed transaction list must match the submitted unsigned hex exactly
// before any broadcast.
type VerificationResponse struct {
	Payment VerificationPayment `json:"payment"`
	Memo    string              `json:"memo"`
}

// PaymentAck is the final payment endpoint's (informational) answer.
type PaymentAck struct {
	Memo string `json:"memo"`
}

// AssetID names a chain or a token on a chain in the wallet system.
// A nil TokenID denotes the chain's native coin.
type AssetID struct {
	PluginID string
	TokenID  *string
}

// AcceptedAsset is an invoice payment option resolved into wallet terms.
// Chain and Currency keep the protocol's naming so the request body for the
// payment-request call can be reconstructed after selection.
type AcceptedAsset struct {
	PluginID     string
	TokenID      *string
	CurrencyCode string
	Chain        string
	Currency     string
}

// Native reports whether the asset is its chain's native coin.
func (a AcceptedAsset) Native() bool {
	return a.TokenID == nil
}
