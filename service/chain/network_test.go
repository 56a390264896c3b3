package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChainID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "canonical hex", input: "0x1f", want: "0x1f"},
		{name: "uppercase hex", input: "0x1F", want: "0x1f"},
		{name: "leading zeros", input: "0x001f", want: "0x1f"},
		{name: "decimal", input: "31", want: "0x1f"},
		{name: "whitespace", input: "  0x1f ", want: "0x1f"},
		{name: "mainnet", input: "1", want: "0x1"},
		{name: "empty", input: "", wantErr: true},
		{name: "zero", input: "0x0", wantErr: true},
		{name: "garbage", input: "0xzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeChainID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNetworkConfig_Matches(t *testing.T) {
	assert.True(t, RootstockTestnet.Matches("0x1F"))
	assert.True(t, RootstockTestnet.Matches("31"))
	assert.False(t, RootstockTestnet.Matches("0x1e"))
	assert.False(t, RootstockTestnet.Matches(""))
}

func TestNetworkConfig_Validate(t *testing.T) {
	require.NoError(t, RootstockTestnet.Validate())

	bad := RootstockTestnet
	bad.ChainID = "nope"
	bad.RPCURLs = nil
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid chain id")
	assert.Contains(t, err.Error(), "at least one RPC URL is required")
}
