// Package settlement drives the post-signing half of an invoice run: verify
// the unsigned transaction against the server's echo, commit the signed
// transaction, and only then broadcast through the wallet engine.
package settlement

import (
	"context"

	"github.com/walletstack/paypro/logger"
	"github.com/walletstack/paypro/metrics"
	"github.com/walletstack/paypro/protocol"
	"github.com/walletstack/paypro/types"
	"github.com/walletstack/paypro/wallet"
)

// State is the orchestrator's position in the linear settlement flow.
// There is no branching back: a failure at verifying or broadcast exits to
// StateFailed and the run is over.
type State string

const (
	StateBuilt     State = "built"
	StateSigned    State = "signed"
	StateVerifying State = "verifying"
	StateVerified  State = "verified"
	StateBroadcast State = "broadcast"
	StateFailed    State = "failed"
)

// Broadcaster is the slice of the wallet engine the orchestrator needs.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx *wallet.Transaction) (*wallet.Transaction, error)
}

// Settler verifies and commits one signed invoice payment. Its Broadcast
// method is handed to the confirmation UI as the spend's alternate
// broadcast hook; each Settler serves exactly one invoice run.
type Settler struct {
	client     *protocol.Client
	wallet     Broadcaster
	paymentURL string
	chain      string
	currency   string
	log        logger.Logger
	metrics    metrics.Recorder
	state      State
}

// New creates a settler for one invoice run.
func New(client *protocol.Client, w Broadcaster, paymentURL, chain, currency string, log logger.Logger, rec metrics.Recorder) *Settler {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Settler{
		client:     client,
		wallet:     w,
		paymentURL: paymentURL,
		chain:      chain,
		currency:   currency,
		log:        log,
		metrics:    rec,
		state:      StateBuilt,
	}
}

// State returns the current settlement state.
func (s *Settler) State() State {
	return s.state
}

// Broadcast runs verification, commit and the wallet broadcast in strict
// sequence. No step is retried; any failure surfaces to the caller and
// prevents everything after it. The transaction must carry both hex
// serializations before any network call is made.
func (s *Settler) Broadcast(ctx context.Context, tx *wallet.Transaction) (*wallet.Transaction, error) {
	s.state = StateSigned

	if tx.UnsignedHex == "" || tx.SignedHex == "" {
		return nil, s.fail(&types.ProtocolError{
			Code:    types.ErrEmptyVerificationHex,
			Message: "signed transaction is missing its hex serialization",
		})
	}

	// Byte count from the hex length, not an engine-derived weight. The
	// server expects exactly this simplification.
	weightedSize := len(tx.SignedHex) / 2

	s.state = StateVerifying
	if _, err := s.client.VerifyPayment(ctx, s.paymentURL, s.chain, s.currency, tx.UnsignedHex, weightedSize); err != nil {
		return nil, s.fail(err)
	}
	s.state = StateVerified

	if _, err := s.client.SubmitPayment(ctx, s.paymentURL, s.chain, s.currency, tx.SignedHex, weightedSize); err != nil {
		return nil, s.fail(err)
	}

	result, err := s.wallet.Broadcast(ctx, tx)
	if err != nil {
		return nil, s.fail(err)
	}
	s.state = StateBroadcast

	s.metrics.IncCounter("payment_broadcast", map[string]string{"chain": s.chain})
	s.log.Info("payment broadcast", map[string]any{
		"chain":    s.chain,
		"currency": s.currency,
		"txid":     result.TxID,
	})
	return result, nil
}

func (s *Settler) fail(err error) error {
	failedAt := s.state
	s.state = StateFailed
	s.metrics.IncCounter("settlement_failed", map[string]string{"chain": s.chain})
	s.log.Error("settlement failed", map[string]any{
		"chain":    s.chain,
		"currency": s.currency,
		"state":    string(failedAt),
		"error":    err.Error(),
	})
	return err
}
