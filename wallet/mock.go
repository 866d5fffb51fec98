package wallet

import "context"

// MockWallet is a canned wallet engine for tests and examples.
type MockWallet struct {
	WalletID   string
	Plugin     string
	Code       string
	Tokens     []Token
	Address    string
	Unsigned   string
	Signed     string
	Broadcasts int

	// MakeSpendErr, when set, fails MakeSpend.
	MakeSpendErr error
}

func (m *MockWallet) ID() string             { return m.WalletID }
func (m *MockWallet) PluginID() string       { return m.Plugin }
func (m *MockWallet) CurrencyCode() string   { return m.Code }
func (m *MockWallet) EnabledTokens() []Token { return m.Tokens }

func (m *MockWallet) ReceiveAddress(ctx context.Context) (string, error) {
	return m.Address, nil
}

func (m *MockWallet) MakeSpend(ctx context.Context, spend *SpendInfo) (*Transaction, error) {
	if m.MakeSpendErr != nil {
		return nil, m.MakeSpendErr
	}
	var amount string
	if len(spend.Targets) > 0 {
		amount = spend.Targets[0].NativeAmount
	}
	return &Transaction{
		NativeAmount: amount,
		Metadata:     spend.Metadata,
	}, nil
}

func (m *MockWallet) SignTx(ctx context.Context, tx *Transaction) (*Transaction, error) {
	signed := *tx
	signed.UnsignedHex = m.Unsigned
	signed.SignedHex = m.Signed
	return &signed, nil
}

func (m *MockWallet) Broadcast(ctx context.Context, tx *Transaction) (*Transaction, error) {
	m.Broadcasts++
	out := *tx
	out.TxID = "mock-txid"
	return &out, nil
}

// MockAccount holds mock wallets and a static token registry.
type MockAccount struct {
	ByID     map[string]Wallet
	Registry map[string][]Token
}

func (m *MockAccount) Wallets() map[string]Wallet { return m.ByID }

func (m *MockAccount) BuiltinTokens(pluginID string) []Token {
	return m.Registry[pluginID]
}

// MockUI scripts the picker and drives the confirmation scene straight
// through sign and broadcast, the way a user tapping "send" would.
type MockUI struct {
	// Choice is returned by the picker; nil simulates a user cancel.
	Choice *WalletChoice

	// Abandon simulates a user leaving the confirmation scene: the spend
	// is never signed and the hook never runs.
	Abandon bool

	// PickFunc, when set, answers the picker instead of Choice. It may
	// add wallets to the account first, the way a real picker does for a
	// creatable entry.
	PickFunc func(ctx context.Context, accepted []AcceptedOption) (*WalletChoice, error)

	PickerSeen []AcceptedOption
}

func (m *MockUI) PickWallet(ctx context.Context, accepted []AcceptedOption) (*WalletChoice, error) {
	m.PickerSeen = accepted
	if m.PickFunc != nil {
		return m.PickFunc(ctx, accepted)
	}
	return m.Choice, nil
}

func (m *MockUI) ShowConfirmation(ctx context.Context, w Wallet, spend *SpendInfo) (*Transaction, error) {
	if m.Abandon {
		return nil, nil
	}
	tx, err := w.MakeSpend(ctx, spend)
	if err != nil {
		return nil, err
	}
	signed, err := w.SignTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if spend.AlternateBroadcast != nil {
		return spend.AlternateBroadcast(ctx, signed)
	}
	return w.Broadcast(ctx, signed)
}
