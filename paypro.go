// Package paypro implements the client side of an invoice-based payment
// protocol: fetch a merchant's payment options, pick a compatible wallet,
// fetch the invoice instructions, build a spend, then verify with the
// server before broadcasting the signed transaction.
package paypro

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/walletstack/paypro/logger"
	"github.com/walletstack/paypro/metrics"
	"github.com/walletstack/paypro/protocol"
	"github.com/walletstack/paypro/selection"
	"github.com/walletstack/paypro/settlement"
	"github.com/walletstack/paypro/spend"
	"github.com/walletstack/paypro/wallet"
)

// PayPro drives invoice payment runs against a protocol server. Each run is
// self-contained: all state lives in the call chain, nothing is persisted,
// and two concurrent runs share no data.
type PayPro struct {
	account wallet.Account
	ui      wallet.UserInterface
	http    *http.Client
	log     logger.Logger
	metrics metrics.Recorder
}

// New wires a PayPro against the account and UI collaborators.
func New(account wallet.Account, ui wallet.UserInterface, opts ...Option) *PayPro {
	p := &PayPro{
		account: account,
		ui:      ui,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LaunchParams scope a run. A non-empty WalletID pins the payer wallet
// instead of offering the picker; Notes are carried into the transaction
// metadata.
type LaunchParams struct {
	WalletID string
	TokenID  *string
	Notes    string
}

// Launch runs one invoice from a protocol URI through to the confirmation
// hand-off. It returns the broadcast transaction, or nil with a nil error
// when the user cancelled at the picker or abandoned the confirmation
// scene. The flow can suspend indefinitely inside the confirmation UI;
// callers wanting a bound pass a cancellable context.
func (p *PayPro) Launch(ctx context.Context, uri string, params *LaunchParams) (*wallet.Transaction, error) {
	if params == nil {
		params = &LaunchParams{}
	}
	runID := uuid.NewString()

	paymentURL, err := ParsePaymentURI(uri)
	if err != nil {
		return nil, err
	}
	testnet := IsTestnetURI(uri)

	client := protocol.NewClient(p.http, p.log, p.metrics).WithRun(runID)
	p.log.Info("invoice run started", map[string]any{
		"runId":   runID,
		"uri":     paymentURL,
		"testnet": testnet,
	})

	options, err := client.FetchPaymentOptions(ctx, paymentURL)
	if err != nil {
		return nil, err
	}

	accepted, err := selection.AcceptedAssets(options.PaymentOptions, p.account, testnet)
	if err != nil {
		return nil, err
	}

	sel, err := selection.Choose(ctx, p.account, p.ui, params.WalletID, params.TokenID, accepted)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		p.log.Info("invoice run cancelled at picker", map[string]any{"runId": runID})
		return nil, nil
	}

	invoice, err := client.FetchInvoice(ctx, options.PaymentURL, sel.Asset.Chain, sel.Asset.Currency)
	if err != nil {
		return nil, err
	}

	settler := settlement.New(
		client, sel.Wallet, invoice.PaymentURL,
		sel.Asset.Chain, sel.Asset.Currency,
		p.log, p.metrics,
	)

	spendInfo, err := spend.Translate(invoice, sel.Asset.PluginID, sel.Asset.TokenID, params.Notes, settler.Broadcast)
	if err != nil {
		return nil, err
	}

	tx, err := p.ui.ShowConfirmation(ctx, sel.Wallet, spendInfo)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		p.log.Info("invoice run abandoned at confirmation", map[string]any{"runId": runID})
		return nil, nil
	}
	return tx, nil
}

// ParsePaymentURI extracts the invoice URL from a protocol deep link. Plain
// http(s) URLs pass through; "bitpay:?r=<url>" unwraps the r parameter;
// "bitpay://host/path" rewrites to https.
func ParsePaymentURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse payment uri: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return uri, nil
	case "bitpay":
		if r := u.Query().Get("r"); r != "" {
			return r, nil
		}
		if u.Host != "" {
			return "https://" + u.Host + u.Path, nil
		}
	}
	return "", fmt.Errorf("unsupported payment uri %q", uri)
}

// IsTestnetURI reports whether the invoice lives on the test network.
func IsTestnetURI(uri string) bool {
	return strings.Contains(uri, "test.bitpay.com")
}
