// Package protocol performs the four HTTPS exchanges of an invoice payment
// run: fetch options, fetch invoice instructions, submit verification,
// submit final payment. Every call goes through one uniform wrapper that
// turns any non-2xx answer into a code-tagged error with full diagnostics.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/walletstack/paypro/codec"
	"github.com/walletstack/paypro/logger"
	"github.com/walletstack/paypro/metrics"
	"github.com/walletstack/paypro/types"
)

// Media types and the fixed protocol-version header sent on every request.
const (
	VersionHeader   = "x-paypro-version"
	ProtocolVersion = "2"

	mimePaymentOptions      = "application/payment-options"
	mimePaymentRequest      = "application/payment-request"
	mimePaymentVerification = "application/payment-verification"
	mimePayment             = "application/payment"
)

// Client talks to one payment protocol server. It holds no per-invoice
// state besides the run id; create one per process and scope it per run
// with WithRun.
type Client struct {
	http    *http.Client
	log     logger.Logger
	metrics metrics.Recorder
	runID   string
}

// NewClient creates a protocol client. A nil httpClient falls back to a
// 30-second-timeout default.
func NewClient(httpClient *http.Client, log logger.Logger, rec metrics.Recorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Client{http: httpClient, log: log, metrics: rec}
}

// WithRun returns a copy of the client tagging every diagnostic and log
// line with the given invoice run id.
func (c *Client) WithRun(runID string) *Client {
	scoped := *c
	scoped.runID = runID
	return &scoped
}

// paymentBody is the POST body shared by the invoice, verification and
// final payment calls.
type paymentBody struct {
	Chain        string                      `json:"chain"`
	Currency     string                      `json:"currency"`
	Transactions []types.ProtocolTransaction `json:"transactions,omitempty"`
}

// headerHint extracts the short media-type hint for error messages: the
// string after the final "application/" segment of the Accept header, or of
// Content-Type when no Accept is set.
func headerHint(header http.Header) string {
	value := header.Get("Accept")
	if value == "" {
		value = header.Get("Content-Type")
	}
	const marker = "application/"
	if i := strings.LastIndex(value, marker); i >= 0 {
		return value[i+len(marker):]
	}
	return value
}

// htmlBody detects whether a response body is an HTML document, so webpage
// markup never leaks into error messages.
func htmlBody(text string) bool {
	return strings.Contains(strings.ToLower(text), "doctype html")
}

// fetchJSON issues one request and returns the raw response body. Any
// status outside 2xx becomes a fetch_failed ProtocolError carrying the
// header hint, the status as a string, the redacted body text and the full
// diagnostic bag. chain labels the failure metric; the options call passes
// "" because no chain is selected yet.
func (c *Client) fetchJSON(ctx context.Context, uri, method, chain string, header http.Header, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set(VersionHeader, ProtocolVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", headerHint(header), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw := string(respBody)
		text := ""
		if raw != "" && !htmlBody(raw) {
			text = ": " + raw
		}
		hint := headerHint(header)
		status := strconv.Itoa(resp.StatusCode)
		perr := &types.ProtocolError{
			Code:    types.ErrFetchFailed,
			Message: fmt.Sprintf("%s fetch failed %s%s", hint, status, text),
			Header:  hint,
			Status:  status,
			Text:    text,
			Diagnostic: &types.Diagnostic{
				RunID:        c.runID,
				URI:          uri,
				Method:       method,
				RequestBody:  string(body),
				ResponseText: raw,
				StatusCode:   resp.StatusCode,
			},
		}
		c.log.Warn("protocol fetch failed", map[string]any{
			"runId":  c.runID,
			"uri":    uri,
			"method": method,
			"chain":  chain,
			"status": resp.StatusCode,
			"hint":   hint,
		})
		c.metrics.IncCounter("fetch_failed", map[string]string{"chain": chain})
		return nil, perr
	}

	return respBody, nil
}

// FetchPaymentOptions performs the options call: the entry point of every
// invoice run, announcing which assets the merchant accepts.
func (c *Client) FetchPaymentOptions(ctx context.Context, uri string) (*types.OptionsResponse, error) {
	start := time.Now()
	header := http.Header{"Accept": []string{mimePaymentOptions}}

	body, err := c.fetchJSON(ctx, uri, http.MethodGet, "", header, nil)
	if err != nil {
		return nil, err
	}
	opts, err := codec.DecodeOptionsResponse(body)
	if err != nil {
		return nil, err
	}

	c.metrics.ObserveLatency("fetch_options", time.Since(start), map[string]string{"chain": ""})
	c.log.Debug("payment options fetched", map[string]any{
		"runId":     c.runID,
		"paymentId": opts.PaymentID,
		"options":   len(opts.PaymentOptions),
	})
	return opts, nil
}

// FetchInvoice performs the payment-request call for the selected asset and
// enforces the single-instruction invoice shape this client supports.
func (c *Client) FetchInvoice(ctx context.Context, uri, chain, currency string) (*types.InvoiceResponse, error) {
	start := time.Now()
	header := http.Header{"Content-Type": []string{mimePaymentRequest}}
	reqBody, err := json.Marshal(paymentBody{Chain: chain, Currency: currency})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.fetchJSON(ctx, uri, http.MethodPost, chain, header, reqBody)
	if err != nil {
		return nil, err
	}
	invoice, err := codec.DecodeInvoiceResponse(body)
	if err != nil {
		return nil, err
	}
	if err := invoice.CheckInstructions(); err != nil {
		return nil, err
	}

	c.metrics.ObserveLatency("fetch_invoice", time.Since(start), map[string]string{"chain": chain})
	c.log.Debug("invoice fetched", map[string]any{
		"runId":     c.runID,
		"paymentId": invoice.PaymentID,
		"chain":     chain,
		"currency":  currency,
	})
	return invoice, nil
}

// VerifyPayment submits the unsigned transaction hex for verification and
// requires the server to echo it back byte for byte. Any deviation in count
// or content fails closed with tx_verification_mismatch.
func (c *Client) VerifyPayment(ctx context.Context, uri, chain, currency, unsignedHex string, weightedSize int) (*types.VerificationResponse, error) {
	start := time.Now()
	header := http.Header{"Content-Type": []string{mimePaymentVerification}}
	reqBody, err := json.Marshal(paymentBody{
		Chain:    chain,
		Currency: currency,
		Transactions: []types.ProtocolTransaction{
			{Tx: unsignedHex, WeightedSize: weightedSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.fetchJSON(ctx, uri, http.MethodPost, chain, header, reqBody)
	if err != nil {
		return nil, err
	}
	verification, err := codec.DecodeVerificationResponse(body)
	if err != nil {
		return nil, err
	}

	echoed := verification.Payment.Transactions
	if len(echoed) != 1 || echoed[0].Tx != unsignedHex {
		c.metrics.IncCounter("verification_mismatch", map[string]string{"chain": chain})
		return nil, &types.ProtocolError{
			Code:    types.ErrVerificationMismatch,
			Message: "server echo did not match the submitted transaction",
			Diagnostic: &types.Diagnostic{
				RunID:       c.runID,
				URI:         uri,
				Method:      http.MethodPost,
				RequestBody: string(reqBody),
			},
		}
	}

	c.metrics.ObserveLatency("verify_payment", time.Since(start), map[string]string{"chain": chain})
	c.log.Debug("payment verified", map[string]any{
		"runId": c.runID,
		"chain": chain,
		"memo":  verification.Memo,
	})
	return verification, nil
}

// SubmitPayment performs the final commit call with the signed hex. The
// answer is informational only; the call's success is what gates broadcast.
func (c *Client) SubmitPayment(ctx context.Context, uri, chain, currency, signedHex string, weightedSize int) (*types.PaymentAck, error) {
	start := time.Now()
	header := http.Header{"Content-Type": []string{mimePayment}}
	reqBody, err := json.Marshal(paymentBody{
		Chain:    chain,
		Currency: currency,
		Transactions: []types.ProtocolTransaction{
			{Tx: signedHex, WeightedSize: weightedSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.fetchJSON(ctx, uri, http.MethodPost, chain, header, reqBody)
	if err != nil {
		return nil, err
	}
	ack, err := codec.DecodePaymentAck(body)
	if err != nil {
		// The commit succeeded; an unreadable ack body must not undo it.
		ack = &types.PaymentAck{}
	}

	c.metrics.ObserveLatency("submit_payment", time.Since(start), map[string]string{"chain": chain})
	c.metrics.IncCounter("payment_committed", map[string]string{"chain": chain})
	c.log.Info("payment committed", map[string]any{
		"runId": c.runID,
		"chain": chain,
		"memo":  ack.Memo,
	})
	return ack, nil
}
