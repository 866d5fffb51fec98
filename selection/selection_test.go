package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletstack/paypro/types"
	"github.com/walletstack/paypro/wallet"
)

func btcOption() types.PaymentOption {
	return types.PaymentOption{Chain: "BTC", Currency: "BTC", Network: "main"}
}

func testAccount(wallets ...wallet.Wallet) *wallet.MockAccount {
	byID := make(map[string]wallet.Wallet, len(wallets))
	for _, w := range wallets {
		byID[w.ID()] = w
	}
	return &wallet.MockAccount{
		ByID: byID,
		Registry: map[string][]wallet.Token{
			"ethereum": {
				{TokenID: "usdc-token", CurrencyCode: "USDC", Decimals: 6},
				{TokenID: "usdp-token", CurrencyCode: "USDP", Decimals: 18},
			},
		},
	}
}

func TestAcceptedAssets_NativeBTC(t *testing.T) {
	acct := testAccount()
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, false)
	require.NoError(t, err)
	require.Len(t, accepted, 1)

	a := accepted[0]
	assert.Equal(t, "bitcoin", a.PluginID)
	assert.Nil(t, a.TokenID)
	assert.Equal(t, "BTC", a.CurrencyCode)
	assert.Equal(t, "BTC", a.Currency)
	assert.True(t, a.Native())
}

func TestAcceptedAssets_TokenResolution(t *testing.T) {
	acct := testAccount()
	accepted, err := AcceptedAssets([]types.PaymentOption{
		{Chain: "ETH", Currency: "USDC", Network: "main"},
		{Chain: "ETH", Currency: "PAX", Network: "main"},
	}, acct, false)
	require.NoError(t, err)
	require.Len(t, accepted, 2)

	require.NotNil(t, accepted[0].TokenID)
	assert.Equal(t, "usdc-token", *accepted[0].TokenID)
	require.NotNil(t, accepted[1].TokenID)
	assert.Equal(t, "usdp-token", *accepted[1].TokenID, "PAX resolves through the currency fix table")
	assert.Equal(t, "PAX", accepted[1].Currency, "protocol naming is preserved for the request body")
}

func TestAcceptedAssets_UnknownETHTokenSkipped(t *testing.T) {
	acct := testAccount()
	accepted, err := AcceptedAssets([]types.PaymentOption{
		btcOption(),
		{Chain: "ETH", Currency: "SHIB", Network: "main"},
	}, acct, false)
	require.NoError(t, err)
	require.Len(t, accepted, 1, "unmatched ETH token options are skipped silently")
	assert.Equal(t, "bitcoin", accepted[0].PluginID)
}

func TestAcceptedAssets_UnknownTokenElsewhereFails(t *testing.T) {
	acct := testAccount()
	_, err := AcceptedAssets([]types.PaymentOption{
		{Chain: "MATIC", Currency: "BAR", Network: "main"},
	}, acct, false)
	require.Error(t, err)
}

func TestAcceptedAssets_UnsupportedChainSkipped(t *testing.T) {
	acct := testAccount()
	accepted, err := AcceptedAssets([]types.PaymentOption{
		{Chain: "ZEC", Currency: "ZEC", Network: "main"},
		btcOption(),
	}, acct, false)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
}

func TestAcceptedAssets_Testnet(t *testing.T) {
	acct := testAccount()
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, true)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "bitcointestnet", accepted[0].PluginID)
	assert.Equal(t, "TESTBTC", accepted[0].CurrencyCode)
	assert.Equal(t, "BTC", accepted[0].Currency)
}

func TestChoose_ScopedWalletAccepted(t *testing.T) {
	w := &wallet.MockWallet{WalletID: "w1", Plugin: "bitcoin", Code: "BTC"}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, false)
	require.NoError(t, err)

	sel, err := Choose(context.Background(), acct, &wallet.MockUI{}, "w1", nil, accepted)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "w1", sel.Wallet.ID())
	assert.Equal(t, "BTC", sel.Asset.Currency)
}

func TestChoose_ScopedWalletRejected(t *testing.T) {
	w := &wallet.MockWallet{WalletID: "w1", Plugin: "dogecoin", Code: "DOGE"}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, false)
	require.NoError(t, err)

	_, err = Choose(context.Background(), acct, &wallet.MockUI{}, "w1", nil, accepted)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidPaymentOption))

	var perr *types.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Text, "BTC/BTC", "error carries the accepted list")
}

func TestChoose_NoAcceptedAssets(t *testing.T) {
	w := &wallet.MockWallet{WalletID: "w1", Plugin: "dogecoin", Code: "DOGE"}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{
		{Chain: "ZEC", Currency: "ZEC", Network: "main"},
	}, acct, false)
	require.NoError(t, err)
	require.Empty(t, accepted)

	ui := &wallet.MockUI{}
	_, err = Choose(context.Background(), acct, ui, "", nil, accepted)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrNoPaymentOption))
	assert.Nil(t, ui.PickerSeen, "nothing to offer, no picker")
}

func TestChoose_UnwalletedAssetOfferedAsCreatable(t *testing.T) {
	// A DOGE-only account facing a BTC-only invoice still reaches the
	// picker: the BTC asset is supported, just not walleted yet.
	w := &wallet.MockWallet{WalletID: "w1", Plugin: "dogecoin", Code: "DOGE"}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, false)
	require.NoError(t, err)

	ui := &wallet.MockUI{
		PickFunc: func(ctx context.Context, options []wallet.AcceptedOption) (*wallet.WalletChoice, error) {
			require.Len(t, options, 1)
			assert.True(t, options[0].Creatable)
			assert.Empty(t, options[0].WalletID)
			assert.Equal(t, "bitcoin", options[0].PluginID)

			acct.ByID["w2"] = &wallet.MockWallet{WalletID: "w2", Plugin: "bitcoin", Code: "BTC"}
			return &wallet.WalletChoice{WalletID: "w2"}, nil
		},
	}
	sel, err := Choose(context.Background(), acct, ui, "", nil, accepted)
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "w2", sel.Wallet.ID())
	assert.Equal(t, "BTC", sel.Asset.Currency)
}

func TestChoose_CreatedWalletMustMatchAcceptedSet(t *testing.T) {
	acct := testAccount()
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, false)
	require.NoError(t, err)

	ui := &wallet.MockUI{
		PickFunc: func(ctx context.Context, options []wallet.AcceptedOption) (*wallet.WalletChoice, error) {
			acct.ByID["w2"] = &wallet.MockWallet{WalletID: "w2", Plugin: "dogecoin", Code: "DOGE"}
			return &wallet.WalletChoice{WalletID: "w2"}, nil
		},
	}
	_, err = Choose(context.Background(), acct, ui, "", nil, accepted)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidPaymentOption))
}

func TestChoose_UnknownChoiceRejected(t *testing.T) {
	w := &wallet.MockWallet{WalletID: "w1", Plugin: "bitcoin", Code: "BTC"}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, false)
	require.NoError(t, err)

	ui := &wallet.MockUI{Choice: &wallet.WalletChoice{WalletID: "ghost"}}
	_, err = Choose(context.Background(), acct, ui, "", nil, accepted)
	require.Error(t, err)
}

func TestOfferOptions_StableOrder(t *testing.T) {
	wallets := map[string]wallet.Wallet{
		"w2": &wallet.MockWallet{WalletID: "w2", Plugin: "bitcoin", Code: "BTC"},
		"w1": &wallet.MockWallet{WalletID: "w1", Plugin: "bitcoin", Code: "BTC"},
	}
	accepted := []types.AcceptedAsset{
		{PluginID: "bitcoin", CurrencyCode: "BTC", Chain: "BTC", Currency: "BTC"},
		{PluginID: "dogecoin", CurrencyCode: "DOGE", Chain: "DOGE", Currency: "DOGE"},
	}

	want := offerOptions(wallets, accepted)
	require.Len(t, want, 3)
	assert.Equal(t, "w1", want[0].WalletID)
	assert.Equal(t, "w2", want[1].WalletID)
	assert.True(t, want[2].Creatable)

	// Map iteration order must not leak into the offer.
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, offerOptions(wallets, accepted))
	}
}

func TestChoose_PickerCancelIsNotAnError(t *testing.T) {
	w := &wallet.MockWallet{WalletID: "w1", Plugin: "bitcoin", Code: "BTC"}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{btcOption()}, acct, false)
	require.NoError(t, err)

	ui := &wallet.MockUI{Choice: nil}
	sel, err := Choose(context.Background(), acct, ui, "", nil, accepted)
	require.NoError(t, err)
	assert.Nil(t, sel)
	require.Len(t, ui.PickerSeen, 1, "picker was offered the matching wallet")
}

func TestChoose_PickerSelectsToken(t *testing.T) {
	w := &wallet.MockWallet{
		WalletID: "w1", Plugin: "ethereum", Code: "ETH",
		Tokens: []wallet.Token{{TokenID: "usdc-token", CurrencyCode: "USDC", Decimals: 6}},
	}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{
		{Chain: "ETH", Currency: "USDC", Network: "main"},
	}, acct, false)
	require.NoError(t, err)

	tokenID := "usdc-token"
	ui := &wallet.MockUI{Choice: &wallet.WalletChoice{WalletID: "w1", TokenID: &tokenID}}
	sel, err := Choose(context.Background(), acct, ui, "", nil, accepted)
	require.NoError(t, err)
	require.NotNil(t, sel)
	require.NotNil(t, sel.Asset.TokenID)
	assert.Equal(t, "usdc-token", *sel.Asset.TokenID)
	assert.Equal(t, "USDC", sel.Asset.Currency)
}

func TestChoose_TokenWalletWithoutTokenEnabled(t *testing.T) {
	// Wallet exists on the right chain but never enabled the token, so the
	// asset is offered as creatable rather than failing the run.
	w := &wallet.MockWallet{WalletID: "w1", Plugin: "ethereum", Code: "ETH"}
	acct := testAccount(w)
	accepted, err := AcceptedAssets([]types.PaymentOption{
		{Chain: "ETH", Currency: "USDC", Network: "main"},
	}, acct, false)
	require.NoError(t, err)

	ui := &wallet.MockUI{Choice: nil}
	sel, err := Choose(context.Background(), acct, ui, "", nil, accepted)
	require.NoError(t, err)
	assert.Nil(t, sel)
	require.Len(t, ui.PickerSeen, 1)
	assert.True(t, ui.PickerSeen[0].Creatable)
	require.NotNil(t, ui.PickerSeen[0].TokenID)
	assert.Equal(t, "usdc-token", *ui.PickerSeen[0].TokenID)
}
