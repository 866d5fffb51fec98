// Package spend turns a validated invoice instruction into a spend request
// for the wallet engine: target ordering, atomic-amount stringification and
// the per-chain fee-rate buffer.
package spend

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/walletstack/paypro/chains"
	"github.com/walletstack/paypro/types"
	"github.com/walletstack/paypro/wallet"
)

// segwitFeeBuffer overshoots the server's required fee rate on segwit
// chains. The server does not discount segwit transaction weight, so paying
// the quoted rate verbatim risks an under-fee rejection; other chains get a
// smaller buffer from the currency engine itself.
var segwitFeeBuffer = decimal.NewFromFloat(1.8)

// Translate builds the spend request for the invoice's sole instruction.
// The broadcast hook is attached rather than invoked: the confirmation UI
// calls it once the user authorizes the spend and both transaction hexes
// exist.
func Translate(
	invoice *types.InvoiceResponse,
	pluginID string,
	tokenID *string,
	notes string,
	broadcast wallet.BroadcastFunc,
) (*wallet.SpendInfo, error) {
	if err := invoice.CheckInstructions(); err != nil {
		return nil, err
	}
	if len(invoice.Instructions) != 1 {
		return nil, &types.ProtocolError{
			Code:    types.ErrEmptyOutputInvoice,
			Message: "invoice carries no payment instruction",
		}
	}
	instr := invoice.Instructions[0]

	// The wire puts the merchant's primary payment first; the confirmation
	// scene wants the user's send amount foregrounded instead. Display
	// ordering only, kept for behavioral compatibility.
	outputs := reverseOutputs(instr.Outputs)

	info := &wallet.SpendInfo{
		TokenID:          tokenID,
		NetworkFeeOption: wallet.FeeOptionStandard,
		Metadata: wallet.Metadata{
			Notes: appendPaymentID(notes, invoice.PaymentID),
		},
		AlternateBroadcast: broadcast,
	}

	evm := chains.EVMFamily(pluginID)
	for _, out := range outputs {
		if evm && !common.IsHexAddress(out.Address) {
			return nil, fmt.Errorf("invalid %s output address %q", invoice.Chain, out.Address)
		}
		info.Targets = append(info.Targets, wallet.SpendTarget{
			Address:      out.Address,
			NativeAmount: nativeAmount(out.Amount),
		})
	}

	if evm && instr.Data != nil {
		if _, err := hexutil.Decode(*instr.Data); err != nil {
			return nil, fmt.Errorf("invalid %s instruction data: %w", invoice.Chain, err)
		}
		info.Data = *instr.Data
	}

	switch {
	case evm && instr.GasPrice != nil:
		// An explicit gas price on the instruction wins over the generic
		// fee rate.
		info.NetworkFeeOption = wallet.FeeOptionCustom
		info.CustomNetworkFee = &wallet.CustomNetworkFee{
			GasPrice: decimal.NewFromFloat(*instr.GasPrice).Ceil().String(),
		}
	case instr.RequiredFeeRate != nil:
		rate := bufferedFeeRate(pluginID, *instr.RequiredFeeRate)
		info.NetworkFeeOption = wallet.FeeOptionCustom
		fee := &wallet.CustomNetworkFee{}
		if evm {
			fee.GasPrice = fmt.Sprintf("%d", rate)
		} else {
			fee.SatPerByte = rate
		}
		info.CustomNetworkFee = fee
	}

	return info, nil
}

// nativeAmount renders an atomic-unit amount as the wallet's native-amount
// string. Decimal keeps large amounts out of float exponent notation.
func nativeAmount(amount float64) string {
	return decimal.NewFromFloat(amount).String()
}

// bufferedFeeRate scales the server's required fee rate and rounds up to
// the next integer fee unit.
func bufferedFeeRate(pluginID string, rate float64) int64 {
	d := decimal.NewFromFloat(rate)
	if chains.Segwit(pluginID) {
		d = d.Mul(segwitFeeBuffer)
	}
	return d.Ceil().IntPart()
}

// reverseOutputs returns the outputs in reverse order. Applying it twice
// restores the wire order.
func reverseOutputs(outputs []types.InstructionOutput) []types.InstructionOutput {
	reversed := make([]types.InstructionOutput, len(outputs))
	for i, out := range outputs {
		reversed[len(outputs)-1-i] = out
	}
	return reversed
}

// appendPaymentID adds a human-readable payment reference to any
// caller-supplied notes.
func appendPaymentID(notes, paymentID string) string {
	line := "Payment Protocol ID: " + paymentID
	if notes == "" {
		return line
	}
	return notes + "\n\n" + line
}
