// Package wallet declares the external collaborators a protocol run consumes:
// the wallet engine that builds, signs and broadcasts transactions, the
// account holding the user's wallets, and the UI surface that asks the user
// to pick a wallet and confirm a spend. The protocol core implements none of
// these; it only drives them.
package wallet

import "context"

// Fee selection modes for a spend.
const (
	FeeOptionStandard = "standard"
	FeeOptionCustom   = "custom"
)

// Token is one asset a plugin can host besides its native coin.
type Token struct {
	TokenID      string
	CurrencyCode string
	Decimals     int
}

// SpendTarget is a single payment destination with an atomic-unit amount.
type SpendTarget struct {
	Address      string
	NativeAmount string
}

// CustomNetworkFee carries an explicit fee rate. UTXO chains use SatPerByte,
// account chains use GasPrice (wei, decimal string).
type CustomNetworkFee struct {
	SatPerByte int64
	GasPrice   string
}

// Metadata is caller-supplied bookkeeping attached to a transaction.
type Metadata struct {
	Name  string
	Notes string
}

// Transaction is the engine's view of a spend, before and after signing.
// UnsignedHex and SignedHex are the serializations submitted to the remote
// server during verification and commit.
type Transaction struct {
	TxID         string
	NativeAmount string
	UnsignedHex  string
	SignedHex    string
	Metadata     Metadata
}

// BroadcastFunc publishes a signed transaction and returns the final
// transaction record.
type BroadcastFunc func(ctx context.Context, tx *Transaction) (*Transaction, error)

// SpendInfo is the request handed to the wallet engine to build a spend.
type SpendInfo struct {
	TokenID          *string
	Targets          []SpendTarget
	NetworkFeeOption string
	CustomNetworkFee *CustomNetworkFee
	Metadata         Metadata

	// Data is an optional contract-call payload for account chains.
	Data string

	// AlternateBroadcast, when set, replaces the engine's own broadcast.
	// The confirmation UI invokes it after the user authorizes the spend
	// and the engine produced both hex serializations.
	AlternateBroadcast BroadcastFunc
}

// Wallet is one funded wallet in the user's account.
type Wallet interface {
	ID() string
	PluginID() string

	// CurrencyCode is the ticker of the wallet's native coin.
	CurrencyCode() string

	// EnabledTokens lists the tokens the user activated on this wallet.
	EnabledTokens() []Token

	ReceiveAddress(ctx context.Context) (string, error)
	MakeSpend(ctx context.Context, spend *SpendInfo) (*Transaction, error)
	SignTx(ctx context.Context, tx *Transaction) (*Transaction, error)
	Broadcast(ctx context.Context, tx *Transaction) (*Transaction, error)
}

// Account exposes the user's wallets and the token registry of this build.
type Account interface {
	// Wallets returns the user's wallets keyed by wallet id.
	Wallets() map[string]Wallet

	// BuiltinTokens lists the tokens this build knows for a plugin,
	// whether or not any wallet has them enabled.
	BuiltinTokens(pluginID string) []Token
}

// WalletChoice is the outcome of the wallet picker.
type WalletChoice struct {
	WalletID string
	TokenID  *string
}

// UserInterface is the UI boundary. Both operations suspend on a human
// decision with no timeout of their own; a nil result with a nil error means
// the user dismissed the surface, which is a normal early return and never
// an error.
type UserInterface interface {
	// PickWallet asks the user to choose among the accepted assets. For a
	// Creatable entry the scene makes the wallet first and answers with
	// the new wallet's id.
	PickWallet(ctx context.Context, accepted []AcceptedOption) (*WalletChoice, error)

	// ShowConfirmation hands the spend to the confirmation scene. The
	// scene eventually invokes the spend's AlternateBroadcast hook and
	// returns its result, or never resolves if the user abandons it.
	ShowConfirmation(ctx context.Context, w Wallet, spend *SpendInfo) (*Transaction, error)
}

// AcceptedOption pairs a wallet able to pay the invoice with the asset it
// would pay in. A Creatable entry has no WalletID yet: the asset's plugin
// is supported but no existing wallet carries the asset, and the picker
// may create the wallet before answering.
type AcceptedOption struct {
	WalletID     string
	PluginID     string
	TokenID      *string
	CurrencyCode string
	Creatable    bool
}
