// Package codec decodes untrusted protocol JSON into typed records. Each
// decoder is purely structural: required fields must be present, optional
// fields stay nil when absent, and no business rules are applied here.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/walletstack/paypro/types"
)

var validate = validator.New()

// Raw shapes mirror the wire exactly, with every field behind a pointer so
// "absent" and "zero" stay distinguishable until the required checks ran.

type rawPaymentOption struct {
	Chain           *string  `json:"chain" validate:"required"`
	Currency        *string  `json:"currency" validate:"required"`
	Network         *string  `json:"network" validate:"required"`
	EstimatedAmount *float64 `json:"estimatedAmount" validate:"required"`
	RequiredFeeRate *float64 `json:"requiredFeeRate" validate:"required"`
	MinerFee        *float64 `json:"minerFee" validate:"required"`
	Decimals        *int     `json:"decimals" validate:"required"`
	Selected        *bool    `json:"selected" validate:"required"`
}

type rawOptionsResponse struct {
	Time           *time.Time         `json:"time" validate:"required"`
	Expires        *time.Time         `json:"expires" validate:"required"`
	Memo           *string            `json:"memo" validate:"required"`
	PaymentURL     *string            `json:"paymentUrl" validate:"required"`
	PaymentID      *string            `json:"paymentId" validate:"required"`
	PaymentOptions []rawPaymentOption `json:"paymentOptions" validate:"required,min=1,dive"`
}

type rawInstructionOutput struct {
	Amount    *float64 `json:"amount" validate:"required"`
	Address   *string  `json:"address" validate:"required"`
	InvoiceID *string  `json:"invoiceID"`
}

type rawInvoiceInstruction struct {
	Type            *string                `json:"type" validate:"required"`
	RequiredFeeRate *float64               `json:"requiredFeeRate"`
	Outputs         []rawInstructionOutput `json:"outputs" validate:"omitempty,dive"`
	Value           *float64               `json:"value"`
	To              *string                `json:"to"`
	Data            *string                `json:"data"`
	GasPrice        *float64               `json:"gasPrice"`
}

type rawInvoiceResponse struct {
	Time         *time.Time              `json:"time" validate:"required"`
	Expires      *time.Time              `json:"expires" validate:"required"`
	Memo         *string                 `json:"memo" validate:"required"`
	PaymentURL   *string                 `json:"paymentUrl" validate:"required"`
	PaymentID    *string                 `json:"paymentId" validate:"required"`
	Chain        *string                 `json:"chain" validate:"required"`
	Network      *string                 `json:"network" validate:"required"`
	Currency     *string                 `json:"currency"`
	Instructions []rawInvoiceInstruction `json:"instructions" validate:"required,min=1,dive"`
}

type rawProtocolTransaction struct {
	Tx           *string `json:"tx" validate:"required"`
	WeightedSize *int    `json:"weightedSize"`
}

type rawVerificationPayment struct {
	Currency *string `json:"currency"`
	Chain    *string `json:"chain"`

	// An empty echo list is structurally legal; the orchestrator turns it
	// into a verification mismatch.
	Transactions []rawProtocolTransaction `json:"transactions" validate:"omitempty,dive"`
}

type rawVerificationResponse struct {
	Payment *rawVerificationPayment `json:"payment" validate:"required"`
	Memo    *string                 `json:"memo" validate:"required"`
}

// structural wraps a decode or required-field failure with the shape name.
// The result is a plain error, deliberately not a ProtocolError: malformed
// server JSON is a parse fault, not a domain outcome.
func structural(shape string, err error) error {
	return fmt.Errorf("invalid %s response: %w", shape, err)
}

func decode(shape string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return structural(shape, err)
	}
	if err := validate.Struct(out); err != nil {
		return structural(shape, err)
	}
	return nil
}

// DecodeOptionsResponse decodes a payment-options answer.
func DecodeOptionsResponse(data []byte) (*types.OptionsResponse, error) {
	var raw rawOptionsResponse
	if err := decode("payment-options", data, &raw); err != nil {
		return nil, err
	}

	out := &types.OptionsResponse{
		Time:       *raw.Time,
		Expires:    *raw.Expires,
		Memo:       *raw.Memo,
		PaymentURL: *raw.PaymentURL,
		PaymentID:  *raw.PaymentID,
	}
	out.PaymentOptions = make([]types.PaymentOption, 0, len(raw.PaymentOptions))
	for _, o := range raw.PaymentOptions {
		out.PaymentOptions = append(out.PaymentOptions, types.PaymentOption{
			Chain:           *o.Chain,
			Currency:        *o.Currency,
			Network:         *o.Network,
			EstimatedAmount: *o.EstimatedAmount,
			RequiredFeeRate: *o.RequiredFeeRate,
			MinerFee:        *o.MinerFee,
			Decimals:        *o.Decimals,
			Selected:        *o.Selected,
		})
	}
	return out, nil
}

// DecodeInvoiceResponse decodes a payment-request answer.
func DecodeInvoiceResponse(data []byte) (*types.InvoiceResponse, error) {
	var raw rawInvoiceResponse
	if err := decode("payment-request", data, &raw); err != nil {
		return nil, err
	}

	out := &types.InvoiceResponse{
		Time:       *raw.Time,
		Expires:    *raw.Expires,
		Memo:       *raw.Memo,
		PaymentURL: *raw.PaymentURL,
		PaymentID:  *raw.PaymentID,
		Chain:      *raw.Chain,
		Network:    *raw.Network,
		Currency:   raw.Currency,
	}
	out.Instructions = make([]types.InvoiceInstruction, 0, len(raw.Instructions))
	for _, in := range raw.Instructions {
		instr := types.InvoiceInstruction{
			Type:            *in.Type,
			RequiredFeeRate: in.RequiredFeeRate,
			Value:           in.Value,
			To:              in.To,
			Data:            in.Data,
			GasPrice:        in.GasPrice,
		}
		for _, o := range in.Outputs {
			instr.Outputs = append(instr.Outputs, types.InstructionOutput{
				Amount:    *o.Amount,
				Address:   *o.Address,
				InvoiceID: o.InvoiceID,
			})
		}
		out.Instructions = append(out.Instructions, instr)
	}
	return out, nil
}

// DecodeVerificationResponse decodes a payment-verification answer.
func DecodeVerificationResponse(data []byte) (*types.VerificationResponse, error) {
	var raw rawVerificationResponse
	if err := decode("payment-verification", data, &raw); err != nil {
		return nil, err
	}

	out := &types.VerificationResponse{Memo: *raw.Memo}
	if raw.Payment.Currency != nil {
		out.Payment.Currency = *raw.Payment.Currency
	}
	if raw.Payment.Chain != nil {
		out.Payment.Chain = *raw.Payment.Chain
	}
	for _, tx := range raw.Payment.Transactions {
		p := types.ProtocolTransaction{Tx: *tx.Tx}
		if tx.WeightedSize != nil {
			p.WeightedSize = *tx.WeightedSize
		}
		out.Payment.Transactions = append(out.Payment.Transactions, p)
	}
	return out, nil
}

// DecodePaymentAck decodes the final payment endpoint's answer. The ack is
// informational only, so decoding is lenient: a missing memo is fine.
func DecodePaymentAck(data []byte) (*types.PaymentAck, error) {
	var ack types.PaymentAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, structural("payment", err)
	}
	return &ack, nil
}
