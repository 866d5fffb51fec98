// Package selection decides which of the user's wallets can pay an invoice.
// It maps the merchant's payment options into wallet assets, verifies a
// pre-scoped wallet or offers the user a picker, and tracks native-vs-token
// identity so the protocol currency string can be rebuilt afterwards.
// Accepted assets the user holds no wallet for are still offered, marked
// creatable, and the wallet the picker creates for them resolves after the
// pick.
package selection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/walletstack/paypro/chains"
	"github.com/walletstack/paypro/types"
	"github.com/walletstack/paypro/wallet"
)

// Selection is the resolved payer for one invoice run.
type Selection struct {
	Wallet wallet.Wallet
	Asset  types.AcceptedAsset
}

// AcceptedAssets resolves the invoice's payment options into wallet asset
// candidates. Options on chains this build has no plugin for are skipped.
// Token options without a registry match are skipped only on tolerant
// chains; anywhere else a missing mapping aborts the run, because a wallet
// asset must stay traceable to exactly one accepted (chain, currency) pair.
func AcceptedAssets(opts []types.PaymentOption, acct wallet.Account, testnet bool) ([]types.AcceptedAsset, error) {
	var accepted []types.AcceptedAsset
	for _, opt := range opts {
		cand, ok := chains.Reverse(opt.Chain, opt.Currency, testnet)
		if !ok {
			continue
		}

		asset := types.AcceptedAsset{
			PluginID:     cand.PluginID,
			CurrencyCode: cand.CurrencyCode,
			Chain:        opt.Chain,
			Currency:     opt.Currency,
		}
		if !cand.Native {
			tokenID, ok := findToken(acct.BuiltinTokens(cand.PluginID), cand.CurrencyCode)
			if !ok {
				if chains.Tolerant(opt.Chain) {
					continue
				}
				return nil, fmt.Errorf("no token registered for %s on %s", opt.Currency, opt.Chain)
			}
			asset.TokenID = &tokenID
		}
		accepted = append(accepted, asset)
	}
	return accepted, nil
}

func findToken(registry []wallet.Token, currencyCode string) (string, bool) {
	for _, t := range registry {
		if t.CurrencyCode == currencyCode {
			return t.TokenID, true
		}
	}
	return "", false
}

// VerifyWallet checks a pre-scoped wallet's asset against the accepted set
// and returns the matching asset. A miss is fatal and carries the accepted
// list as diagnostic text.
func VerifyWallet(w wallet.Wallet, tokenID *string, accepted []types.AcceptedAsset) (*types.AcceptedAsset, error) {
	for _, a := range accepted {
		if a.PluginID != w.PluginID() {
			continue
		}
		if sameToken(a.TokenID, tokenID) {
			match := a
			return &match, nil
		}
	}

	return nil, &types.ProtocolError{
		Code:    types.ErrInvalidPaymentOption,
		Message: "wallet asset is not among the invoice's payment options",
		Text:    acceptedList(accepted),
	}
}

func sameToken(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func acceptedList(accepted []types.AcceptedAsset) string {
	codes := make([]string, 0, len(accepted))
	for _, a := range accepted {
		codes = append(codes, a.Chain+"/"+a.Currency)
	}
	return strings.Join(codes, ", ")
}

// Choose resolves the payer wallet. A non-empty scopedWalletID verifies
// that wallet directly; otherwise every accepted asset is offered through
// the picker: assets an existing wallet can pay carry that wallet's id,
// the rest are offered as creatable and the picker may make the wallet
// during the pick. The chosen wallet is resolved from the account after
// the pick, so a wallet created mid-pick resolves like any other. A nil,
// nil return means the user cancelled, which is a normal early exit and
// never an error.
func Choose(
	ctx context.Context,
	acct wallet.Account,
	ui wallet.UserInterface,
	scopedWalletID string,
	scopedTokenID *string,
	accepted []types.AcceptedAsset,
) (*Selection, error) {
	if scopedWalletID != "" {
		w, ok := acct.Wallets()[scopedWalletID]
		if !ok {
			return nil, fmt.Errorf("unknown wallet id %q", scopedWalletID)
		}
		asset, err := VerifyWallet(w, scopedTokenID, accepted)
		if err != nil {
			return nil, err
		}
		return &Selection{Wallet: w, Asset: *asset}, nil
	}

	options := offerOptions(acct.Wallets(), accepted)
	if len(options) == 0 {
		return nil, &types.ProtocolError{
			Code:    types.ErrNoPaymentOption,
			Message: "no existing or creatable wallet matches the invoice's payment options",
			Text:    acceptedList(accepted),
		}
	}

	choice, err := ui.PickWallet(ctx, options)
	if err != nil {
		return nil, err
	}
	if choice == nil {
		// User dismissed the picker.
		return nil, nil
	}

	// Re-read the account: a wallet picked through a creatable entry
	// exists only now.
	w, ok := acct.Wallets()[choice.WalletID]
	if !ok {
		return nil, fmt.Errorf("picker returned unknown wallet %q", choice.WalletID)
	}
	asset, err := VerifyWallet(w, choice.TokenID, accepted)
	if err != nil {
		return nil, err
	}
	return &Selection{Wallet: w, Asset: *asset}, nil
}

// offerOptions lists one picker entry per payable (wallet, asset) pair,
// wallets in id order, plus a creatable entry for every accepted asset no
// existing wallet can pay.
func offerOptions(wallets map[string]wallet.Wallet, accepted []types.AcceptedAsset) []wallet.AcceptedOption {
	ids := make([]string, 0, len(wallets))
	for id := range wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var options []wallet.AcceptedOption
	for _, a := range accepted {
		backed := false
		for _, id := range ids {
			if !canPay(wallets[id], a) {
				continue
			}
			backed = true
			options = append(options, assetOption(id, a, false))
		}
		if !backed {
			options = append(options, assetOption("", a, true))
		}
	}
	return options
}

func assetOption(walletID string, a types.AcceptedAsset, creatable bool) wallet.AcceptedOption {
	opt := wallet.AcceptedOption{
		WalletID:     walletID,
		PluginID:     a.PluginID,
		CurrencyCode: a.CurrencyCode,
		Creatable:    creatable,
	}
	if a.TokenID != nil {
		tokenID := *a.TokenID
		opt.TokenID = &tokenID
	}
	return opt
}

func canPay(w wallet.Wallet, a types.AcceptedAsset) bool {
	if a.PluginID != w.PluginID() {
		return false
	}
	if a.Native() {
		return w.CurrencyCode() == a.CurrencyCode
	}
	return hasToken(w.EnabledTokens(), *a.TokenID)
}

func hasToken(tokens []wallet.Token, tokenID string) bool {
	for _, t := range tokens {
		if t.TokenID == tokenID {
			return true
		}
	}
	return false
}
