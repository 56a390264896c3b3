package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// NativeCurrency describes the gas token of a network.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NetworkConfig is the network description handed to the wallet when the
// chain has to be added. Field names follow EIP-3085.
type NetworkConfig struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// RootstockTestnet is the default target network.
var RootstockTestnet = NetworkConfig{
	ChainID:   "0x1f",
	ChainName: "Rootstock Testnet",
	NativeCurrency: NativeCurrency{
		Name:     "Test RBTC",
		Symbol:   "tRBTC",
		Decimals: 18,
	},
	RPCURLs:           []string{"https://public-node.testnet.rsk.co"},
	BlockExplorerURLs: []string{"https://explorer.testnet.rsk.co"},
}

// NormalizeChainID converts a hex ("0x1F", "0x001f") or decimal ("31") chain id
// into its canonical form: lowercase, 0x-prefixed, no leading zeros.
func NormalizeChainID(id string) (string, error) {
	n, err := ParseChainID(id)
	if err != nil {
		return "", err
	}
	return "0x" + n.Text(16), nil
}

// ParseChainID parses a hex or decimal chain id.
func ParseChainID(id string) (*big.Int, error) {
	s := strings.ToLower(strings.TrimSpace(id))
	if s == "" {
		return nil, fmt.Errorf("missing chain id")
	}

	base := 10
	if strings.HasPrefix(s, "0x") {
		s = strings.TrimPrefix(s, "0x")
		base = 16
	}

	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %q", id)
	}
	return n, nil
}

// Matches reports whether a chain id reported by a wallet refers to this network.
func (n NetworkConfig) Matches(reported string) bool {
	want, err := NormalizeChainID(n.ChainID)
	if err != nil {
		return false
	}
	got, err := NormalizeChainID(reported)
	if err != nil {
		return false
	}
	return want == got
}

// Validate checks that the network description is complete enough to be
// submitted to wallet_addEthereumChain.
func (n NetworkConfig) Validate() error {
	var errs []error

	if _, err := NormalizeChainID(n.ChainID); err != nil {
		errs = append(errs, err)
	}
	if n.ChainName == "" {
		errs = append(errs, fmt.Errorf("chain name is required"))
	}
	if n.NativeCurrency.Symbol == "" {
		errs = append(errs, fmt.Errorf("native currency symbol is required"))
	}
	if n.NativeCurrency.Decimals < 0 || n.NativeCurrency.Decimals > 36 {
		errs = append(errs, fmt.Errorf("native currency decimals out of range: %d", n.NativeCurrency.Decimals))
	}
	if len(n.RPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("at least one RPC URL is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid network config: %v", errs)
	}
	return nil
}

// normalized returns a copy with a canonical chain id.
func (n NetworkConfig) normalized() NetworkConfig {
	if id, err := NormalizeChainID(n.ChainID); err == nil {
		n.ChainID = id
	}
	return n
}
