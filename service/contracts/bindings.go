package contracts

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Addresses holds the deployed addresses of the marketplace contracts.
type Addresses struct {
	Token   common.Address
	Pool    common.Address
	DAO     common.Address
	Billing common.Address
}

// ParseAddresses validates and converts hex addresses.
func ParseAddresses(token, pool, dao, billing string) (Addresses, error) {
	var errs []error
	parse := func(name, value string) common.Address {
		if !common.IsHexAddress(value) {
			errs = append(errs, fmt.Errorf("%s address %q is not a valid hex address", name, value))
			return common.Address{}
		}
		return common.HexToAddress(value)
	}

	addrs := Addresses{
		Token:   parse("token", token),
		Pool:    parse("pool", pool),
		DAO:     parse("dao", dao),
		Billing: parse("billing", billing),
	}
	if len(errs) > 0 {
		return Addresses{}, fmt.Errorf("invalid contract addresses: %v", errs)
	}
	return addrs, nil
}

// Contract is a bound contract with its parsed ABI.
type Contract struct {
	Address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

func newContract(address common.Address, abiJSON []byte, backend bind.ContractBackend) (*Contract, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &Contract{
		Address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, c.Address.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s on %s: empty result", method, c.Address.Hex())
	}
	return out, nil
}

func (c *Contract) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Transact invokes a state-changing method signed by opts.
func (c *Contract) Transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, c.Address.Hex(), err)
	}
	return tx, nil
}

// Token is the marketplace ERC20.
type Token struct{ *Contract }

// BalanceOf returns the raw token balance of account.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", account)
}

// Decimals returns the token's decimals.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Symbol returns the token's ticker.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

// Approve lets spender move amount.
func (t *Token) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.Transact(opts, "approve", spender, amount)
}

// Transfer sends amount to to.
func (t *Token) Transfer(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.Transact(opts, "transfer", to, amount)
}

// Pool is the staking pool.
type Pool struct{ *Contract }

// TotalStaked returns the pool's total stake.
func (p *Pool) TotalStaked(ctx context.Context) (*big.Int, error) {
	return p.callBig(ctx, "totalStaked")
}

// StakeOf returns account's stake.
func (p *Pool) StakeOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.callBig(ctx, "stakeOf", account)
}

// Stake deposits amount into the pool.
func (p *Pool) Stake(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return p.Transact(opts, "stake", amount)
}

// DAO is the governance contract.
type DAO struct{ *Contract }

// ProposalCount returns the number of proposals created so far.
func (d *DAO) ProposalCount(ctx context.Context) (*big.Int, error) {
	return d.callBig(ctx, "proposalCount")
}

// Vote casts a vote on a proposal.
func (d *DAO) Vote(opts *bind.TransactOpts, proposalID *big.Int, support bool) (*types.Transaction, error) {
	return d.Transact(opts, "vote", proposalID, support)
}

// Billing is the usage billing contract.
type Billing struct{ *Contract }

// BalanceOf returns the prepaid billing balance of account.
func (b *Billing) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return b.callBig(ctx, "balanceOf", account)
}

// PricePerCall returns the per-call price of a listed server.
func (b *Billing) PricePerCall(ctx context.Context, mcpID [32]byte) (*big.Int, error) {
	return b.callBig(ctx, "pricePerCall", mcpID)
}

// Deposit prepays amount for future calls.
func (b *Billing) Deposit(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return b.Transact(opts, "deposit", amount)
}

// Handles groups the four bound contracts of a session.
type Handles struct {
	Token   *Token
	Pool    *Pool
	DAO     *DAO
	Billing *Billing
}

// Bind creates handles for all marketplace contracts on backend.
func Bind(addrs Addresses, backend bind.ContractBackend) (*Handles, error) {
	token, err := newContract(addrs.Token, TokenABI, backend)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	pool, err := newContract(addrs.Pool, PoolABI, backend)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	dao, err := newContract(addrs.DAO, DAOABI, backend)
	if err != nil {
		return nil, fmt.Errorf("dao: %w", err)
	}
	billing, err := newContract(addrs.Billing, BillingABI, backend)
	if err != nil {
		return nil, fmt.Errorf("billing: %w", err)
	}

	return &Handles{
		Token:   &Token{token},
		Pool:    &Pool{pool},
		DAO:     &DAO{dao},
		Billing: &Billing{billing},
	}, nil
}
