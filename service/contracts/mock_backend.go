package contracts

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// MockBackend answers read-only contract calls from canned values.
// Only CallContract and CodeAt are implemented; anything else panics.
type MockBackend struct {
	bind.ContractBackend

	mu      sync.Mutex
	abis    map[common.Address]abi.ABI
	results map[common.Address]map[string][]any
	callErr error
	calls   []string
}

// NewMockBackend registers the marketplace ABIs at addrs.
func NewMockBackend(addrs Addresses) *MockBackend {
	m := &MockBackend{
		abis:    make(map[common.Address]abi.ABI),
		results: make(map[common.Address]map[string][]any),
	}
	for addr, def := range map[common.Address][]byte{
		addrs.Token:   TokenABI,
		addrs.Pool:    PoolABI,
		addrs.DAO:     DAOABI,
		addrs.Billing: BillingABI,
	} {
		parsed, err := abi.JSON(bytes.NewReader(def))
		if err != nil {
			panic(err)
		}
		m.abis[addr] = parsed
	}
	return m
}

// SetResult sets the values returned by method on the contract at addr.
func (m *MockBackend) SetResult(addr common.Address, method string, values ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results[addr] == nil {
		m.results[addr] = make(map[string][]any)
	}
	m.results[addr][method] = values
}

// SetCallError makes every call fail with err.
func (m *MockBackend) SetCallError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callErr = err
}

// Calls returns the method names called so far.
func (m *MockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallContract implements bind.ContractCaller.
func (m *MockBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.callErr != nil {
		return nil, m.callErr
	}
	if call.To == nil || len(call.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}

	parsed, ok := m.abis[*call.To]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", call.To.Hex())
	}
	method, err := parsed.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	m.calls = append(m.calls, method.Name)

	values, ok := m.results[*call.To][method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted: no result for %s", method.Name)
	}
	return method.Outputs.Pack(values...)
}

// CodeAt implements bind.ContractCaller.
func (m *MockBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.abis[contract]; ok {
		return []byte{0x60}, nil
	}
	return nil, nil
}
