package contracts

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddrs = Addresses{
	Token:   common.HexToAddress("0x1000000000000000000000000000000000000001"),
	Pool:    common.HexToAddress("0x1000000000000000000000000000000000000002"),
	DAO:     common.HexToAddress("0x1000000000000000000000000000000000000003"),
	Billing: common.HexToAddress("0x1000000000000000000000000000000000000004"),
}

var holder = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

func TestBind_TokenReads(t *testing.T) {
	backend := NewMockBackend(testAddrs)
	balance, _ := new(big.Int).SetString("1500000000000000000", 10)
	backend.SetResult(testAddrs.Token, "balanceOf", balance)
	backend.SetResult(testAddrs.Token, "decimals", uint8(18))
	backend.SetResult(testAddrs.Token, "symbol", "MCPT")

	handles, err := Bind(testAddrs, backend)
	require.NoError(t, err)

	ctx := context.Background()
	got, err := handles.Token.BalanceOf(ctx, holder)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(got))

	dec, err := handles.Token.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), dec)

	sym, err := handles.Token.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MCPT", sym)

	assert.Equal(t, "1.5", FormatUnits(got, dec))
	assert.Equal(t, []string{"balanceOf", "decimals", "symbol"}, backend.Calls())
}

func TestBind_OtherContracts(t *testing.T) {
	backend := NewMockBackend(testAddrs)
	backend.SetResult(testAddrs.Pool, "totalStaked", big.NewInt(42))
	backend.SetResult(testAddrs.DAO, "proposalCount", big.NewInt(7))
	backend.SetResult(testAddrs.Billing, "balanceOf", big.NewInt(1000))

	handles, err := Bind(testAddrs, backend)
	require.NoError(t, err)
	ctx := context.Background()

	staked, err := handles.Pool.TotalStaked(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), staked.Int64())

	count, err := handles.DAO.ProposalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count.Int64())

	prepaid, err := handles.Billing.BalanceOf(ctx, holder)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), prepaid.Int64())
}

func TestBind_CallError(t *testing.T) {
	backend := NewMockBackend(testAddrs)
	backend.SetCallError(errors.New("connection refused"))

	handles, err := Bind(testAddrs, backend)
	require.NoError(t, err)

	_, err = handles.Token.BalanceOf(context.Background(), holder)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balanceOf")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses(
		"0x1000000000000000000000000000000000000001",
		"0x1000000000000000000000000000000000000002",
		"0x1000000000000000000000000000000000000003",
		"0x1000000000000000000000000000000000000004",
	)
	require.NoError(t, err)
	assert.Equal(t, testAddrs, addrs)

	_, err = ParseAddresses("nope", "", "0x1000000000000000000000000000000000000003", "0x1000000000000000000000000000000000000004")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token address")
	assert.Contains(t, err.Error(), "pool address")
}

func TestUnits(t *testing.T) {
	tests := []struct {
		raw      string
		decimals uint8
		text     string
	}{
		{raw: "0", decimals: 18, text: "0"},
		{raw: "1", decimals: 18, text: "0.000000000000000001"},
		{raw: "1000000", decimals: 6, text: "1"},
		{raw: "123456789", decimals: 4, text: "12345.6789"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			raw, ok := new(big.Int).SetString(tt.raw, 10)
			require.True(t, ok)
			assert.Equal(t, tt.text, FormatUnits(raw, tt.decimals))

			back, err := ParseUnits(tt.text, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, 0, raw.Cmp(back))
		})
	}

	_, err := ParseUnits("0.1234567", 6)
	assert.Error(t, err)
	_, err = ParseUnits("-1", 6)
	assert.Error(t, err)
	assert.Equal(t, "0", FormatUnits(nil, 18))
}
