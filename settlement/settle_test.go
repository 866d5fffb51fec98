package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletstack/paypro/protocol"
	"github.com/walletstack/paypro/types"
	"github.com/walletstack/paypro/wallet"
)

// invoiceServer records the verification and commit calls and echoes a
// configurable transaction list.
type invoiceServer struct {
	echo          []map[string]any
	failCommit    bool
	verifications int
	commits       int
	lastWeighted  int
}

func (s *invoiceServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Chain        string                      `json:"chain"`
			Currency     string                      `json:"currency"`
			Transactions []types.ProtocolTransaction `json:"transactions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Transactions, 1)
		s.lastWeighted = body.Transactions[0].WeightedSize

		switch r.Header.Get("Content-Type") {
		case "application/payment-verification":
			s.verifications++
			json.NewEncoder(w).Encode(map[string]any{
				"payment": map[string]any{"transactions": s.echo},
				"memo":    "verified",
			})
		case "application/payment":
			s.commits++
			if s.failCommit {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte("tx rejected"))
				return
			}
			w.Write([]byte(`{"memo": "broadcast accepted"}`))
		default:
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
	}
}

func newSettler(server *httptest.Server, w Broadcaster) *Settler {
	client := protocol.NewClient(nil, nil, nil)
	return New(client, w, server.URL, "BTC", "BTC", nil, nil)
}

func signedTx() *wallet.Transaction {
	return &wallet.Transaction{UnsignedHex: "abc123", SignedHex: "deadbeef"}
}

func TestBroadcast_HappyPath(t *testing.T) {
	srv := &invoiceServer{echo: []map[string]any{{"tx": "abc123"}}}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	w := &wallet.MockWallet{}
	s := newSettler(server, w)
	assert.Equal(t, StateBuilt, s.State())

	tx, err := s.Broadcast(context.Background(), signedTx())
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "mock-txid", tx.TxID)
	assert.Equal(t, 1, srv.verifications)
	assert.Equal(t, 1, srv.commits)
	assert.Equal(t, 1, w.Broadcasts)
	assert.Equal(t, StateBroadcast, s.State())
	// len("deadbeef") / 2
	assert.Equal(t, 4, srv.lastWeighted)
}

func TestBroadcast_VerificationMismatch(t *testing.T) {
	for _, echo := range [][]map[string]any{
		{{"tx": "abc124"}},
		{},
		{{"tx": "abc123"}, {"tx": "abc123"}},
	} {
		srv := &invoiceServer{echo: echo}
		server := httptest.NewServer(srv.handler(t))

		w := &wallet.MockWallet{}
		s := newSettler(server, w)

		_, err := s.Broadcast(context.Background(), signedTx())
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrVerificationMismatch))
		assert.Zero(t, srv.commits, "mismatch must halt before commit")
		assert.Zero(t, w.Broadcasts, "mismatch must never broadcast")
		assert.Equal(t, StateFailed, s.State())
		server.Close()
	}
}

func TestBroadcast_CommitFailureHaltsBroadcast(t *testing.T) {
	srv := &invoiceServer{echo: []map[string]any{{"tx": "abc123"}}, failCommit: true}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	w := &wallet.MockWallet{}
	s := newSettler(server, w)

	_, err := s.Broadcast(context.Background(), signedTx())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrFetchFailed))

	var perr *types.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "payment", perr.Header)
	assert.Equal(t, ": tx rejected", perr.Text)
	assert.Zero(t, w.Broadcasts)
	assert.Equal(t, StateFailed, s.State())
}

func TestBroadcast_EmptyHexFailsBeforeNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call expected")
	}))
	defer server.Close()

	cases := []*wallet.Transaction{
		{UnsignedHex: "", SignedHex: "deadbeef"},
		{UnsignedHex: "abc123", SignedHex: ""},
		{},
	}
	for _, tx := range cases {
		w := &wallet.MockWallet{}
		s := newSettler(server, w)

		_, err := s.Broadcast(context.Background(), tx)
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrEmptyVerificationHex))
		assert.Zero(t, w.Broadcasts)
		assert.Equal(t, StateFailed, s.State())
	}
}

func TestBroadcast_WalletFailureAfterCommit(t *testing.T) {
	srv := &invoiceServer{echo: []map[string]any{{"tx": "abc123"}}}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	w := &failingBroadcaster{}
	s := newSettler(server, w)

	_, err := s.Broadcast(context.Background(), signedTx())
	require.Error(t, err)
	assert.Equal(t, 1, srv.commits)
	assert.Equal(t, StateFailed, s.State())
}

type failingBroadcaster struct{}

func (f *failingBroadcaster) Broadcast(ctx context.Context, tx *wallet.Transaction) (*wallet.Transaction, error) {
	return nil, assert.AnError
}
