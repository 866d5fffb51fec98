// Package chains translates between the payment protocol's (chain, currency)
// vocabulary and the wallet system's (pluginId, currencyCode) identifiers.
// Every cross-reference between the two worlds goes through this table; there
// is no implicit identity between a protocol ticker and a wallet code.
package chains

// chainPlugins maps a protocol chain ticker to the wallet pluginId serving
// that network on mainnet.
var chainPlugins = map[string]string{
	"BTC":   "bitcoin",
	"BCH":   "bitcoincash",
	"LTC":   "litecoin",
	"DOGE":  "dogecoin",
	"DASH":  "dash",
	"ETH":   "ethereum",
	"MATIC": "polygon",
	"XRP":   "ripple",
}

// currencyFixes maps, per pluginId, token tickers the protocol names
// differently than the wallet system. Tickers reused across ecosystems are
// disambiguated on the wallet side by suffixing.
var currencyFixes = map[string]map[string]string{
	"ethereum": {
		// Paxos rebranded PAX to USDP; the protocol kept the old ticker.
		"PAX": "USDP",
		// ERC-20 MATIC, distinct from the polygon native coin.
		"MATIC": "MATICETH",
	},
	"polygon": {
		// Bridged ether on polygon.
		"ETH": "WETH",
	},
}

const (
	// TestnetPluginID serves protocol chain BTC on the test network.
	TestnetPluginID = "bitcointestnet"

	// TestnetCurrencyCode is the wallet's internal ticker for test-network
	// bitcoin; the protocol calls it plain BTC.
	TestnetCurrencyCode = "TESTBTC"
)

// Candidate is the wallet-side match for a protocol (chain, currency) pair.
type Candidate struct {
	PluginID     string
	CurrencyCode string
	Native       bool
}

// PluginID resolves a protocol chain ticker to its wallet pluginId.
func PluginID(chain string, testnet bool) (string, bool) {
	if testnet && chain == "BTC" {
		return TestnetPluginID, true
	}
	id, ok := chainPlugins[chain]
	return id, ok
}

// ChainCode is the reverse of PluginID.
func ChainCode(pluginID string) (string, bool) {
	if pluginID == TestnetPluginID {
		return "BTC", true
	}
	for chain, id := range chainPlugins {
		if id == pluginID {
			return chain, true
		}
	}
	return "", false
}

// Reverse maps a protocol (chain, currency) pair to its wallet candidate.
// On the test network only the chain BTC pair remaps: the wallet's TESTBTC
// ticker matches and the mainnet coin sharing the BTC code is suppressed.
func Reverse(chain, currency string, testnet bool) (Candidate, bool) {
	pluginID, ok := PluginID(chain, testnet)
	if !ok {
		return Candidate{}, false
	}

	if chain == currency {
		code := currency
		if pluginID == TestnetPluginID {
			code = TestnetCurrencyCode
		}
		return Candidate{PluginID: pluginID, CurrencyCode: code, Native: true}, true
	}

	code := currency
	if fixes, ok := currencyFixes[pluginID]; ok {
		if fixed, ok := fixes[currency]; ok {
			code = fixed
		}
	}
	return Candidate{PluginID: pluginID, CurrencyCode: code}, true
}

// ProtocolPair maps a wallet asset back to the protocol's chain and currency
// strings. Native coins use the chain ticker for both.
func ProtocolPair(pluginID, currencyCode string, native, testnet bool) (chain, currency string, ok bool) {
	if pluginID == TestnetPluginID {
		if !testnet || currencyCode != TestnetCurrencyCode {
			return "", "", false
		}
		return "BTC", "BTC", true
	}
	if testnet && pluginID == "bitcoin" {
		// Mainnet bitcoin never pays a test-network invoice.
		return "", "", false
	}

	chain, ok = ChainCode(pluginID)
	if !ok {
		return "", "", false
	}
	if native {
		return chain, chain, true
	}

	currency = currencyCode
	for proto, wallet := range currencyFixes[pluginID] {
		if wallet == currencyCode {
			currency = proto
			break
		}
	}
	return chain, currency, true
}

// Tolerant reports whether unmatched token options on the given protocol
// chain are skipped rather than failing the whole invoice. ETH is the one
// chain whose option list routinely names tokens this build does not carry.
func Tolerant(chain string) bool {
	return chain == "ETH"
}

// EVMFamily reports whether a pluginId belongs to an account-model chain
// whose instructions carry to/value/data/gasPrice fields.
func EVMFamily(pluginID string) bool {
	return pluginID == "ethereum" || pluginID == "polygon"
}

// segwitPlugins lists the chains whose transaction format the protocol's
// fee estimate does not discount. Spends on these overshoot the required
// rate to avoid an under-fee rejection.
var segwitPlugins = map[string]bool{
	"bitcoin":        true,
	"bitcointestnet": true,
	"litecoin":       true,
}

// Segwit reports whether the plugin's chain supports segwit addresses.
func Segwit(pluginID string) bool {
	return segwitPlugins[pluginID]
}
