package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestEnsureNetwork_AlreadyOnTarget(t *testing.T) {
	p := NewMockProvider("0x1F", testAccount)

	err := EnsureNetwork(context.Background(), p, RootstockTestnet, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth_chainId"}, p.Methods())
}

func TestEnsureNetwork_SwitchesKnownChain(t *testing.T) {
	p := NewMockProvider("0x1", testAccount)
	p.AddKnownChain("0x1f")

	err := EnsureNetwork(context.Background(), p, RootstockTestnet, nil)
	require.NoError(t, err)
	assert.Equal(t, "0x1f", p.CurrentChain())
	assert.Equal(t, []string{"eth_chainId", "wallet_switchEthereumChain"}, p.Methods())
}

func TestEnsureNetwork_AddsUnknownChainThenSwitches(t *testing.T) {
	p := NewMockProvider("0x1", testAccount)

	err := EnsureNetwork(context.Background(), p, RootstockTestnet, nil)
	require.NoError(t, err)
	assert.Equal(t, "0x1f", p.CurrentChain())
	assert.Equal(t, []string{
		"eth_chainId",
		"wallet_switchEthereumChain",
		"wallet_addEthereumChain",
		"wallet_switchEthereumChain",
	}, p.Methods())

	calls := p.Calls()
	added, ok := calls[2].Params[0].(NetworkConfig)
	require.True(t, ok)
	assert.Equal(t, "0x1f", added.ChainID)
	assert.Equal(t, "tRBTC", added.NativeCurrency.Symbol)
	assert.Equal(t, 18, added.NativeCurrency.Decimals)
}

func TestEnsureNetwork_AddRejected(t *testing.T) {
	p := NewMockProvider("0x1", testAccount)
	p.SetError("wallet_addEthereumChain", &ProviderError{Code: CodeUserRejected, Message: "user rejected"})

	err := EnsureNetwork(context.Background(), p, RootstockTestnet, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainSwitchFailed)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
	assert.Equal(t, "0x1", p.CurrentChain())
}

func TestEnsureNetwork_SwitchRejected(t *testing.T) {
	p := NewMockProvider("0x1", testAccount)
	p.AddKnownChain("0x1f")
	p.SetError("wallet_switchEthereumChain", &ProviderError{Code: CodeUserRejected, Message: "user rejected"})

	err := EnsureNetwork(context.Background(), p, RootstockTestnet, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainSwitchFailed)
	assert.False(t, errors.Is(err, ErrUnsupportedChain))
	assert.True(t, IsUserRejected(err))
}

func TestRequestAccounts_FallsBackToEthAccounts(t *testing.T) {
	p := NewMockProvider("0x1f", testAccount)
	p.SetError("eth_requestAccounts", &ProviderError{Code: CodeMethodNotFound, Message: "not supported"})

	accounts, err := RequestAccounts(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, testAccount, accounts[0].Hex())
	assert.Equal(t, []string{"eth_requestAccounts", "eth_accounts"}, p.Methods())
}

func TestRequestAccounts_InvalidAddress(t *testing.T) {
	p := NewMockProvider("0x1f", "not-an-address")

	_, err := RequestAccounts(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid account")
}
