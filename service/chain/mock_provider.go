package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ProviderCall records a request seen by MockProvider.
type ProviderCall struct {
	Method string
	Params []any
}

// MockProvider is an in-memory wallet for tests. It keeps an account list
// and a current chain, and emulates switch/add semantics.
type MockProvider struct {
	mu sync.Mutex

	accounts     []string
	chainID      string
	knownChains  map[string]bool
	methodErrors map[string]error
	handlers     map[string]func(params []any) (any, error)
	calls        []ProviderCall
}

// NewMockProvider creates a wallet on chainID holding the given accounts.
func NewMockProvider(chainID string, accounts ...string) *MockProvider {
	id, err := NormalizeChainID(chainID)
	if err != nil {
		id = chainID
	}
	return &MockProvider{
		accounts:     accounts,
		chainID:      id,
		knownChains:  map[string]bool{id: true},
		methodErrors: make(map[string]error),
		handlers:     make(map[string]func(params []any) (any, error)),
	}
}

// AddKnownChain marks a chain as known so switching to it succeeds.
func (m *MockProvider) AddKnownChain(chainID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := NormalizeChainID(chainID)
	m.knownChains[id] = true
}

// SetError makes every call to method fail with err. A nil err clears it.
func (m *MockProvider) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.methodErrors, method)
		return
	}
	m.methodErrors[method] = err
}

// Handle overrides the response for method.
func (m *MockProvider) Handle(method string, fn func(params []any) (any, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = fn
}

// CurrentChain returns the chain the mock wallet is on.
func (m *MockProvider) CurrentChain() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainID
}

// Calls returns the requests seen so far.
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Methods returns the method names of the requests seen so far.
func (m *MockProvider) Methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Method
	}
	return out
}

// Request implements Provider.
func (m *MockProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, ProviderCall{Method: method, Params: params})
	if err, ok := m.methodErrors[method]; ok {
		m.mu.Unlock()
		return nil, err
	}
	handler, hasHandler := m.handlers[method]
	m.mu.Unlock()

	var (
		result any
		err    error
	)
	if hasHandler {
		result, err = handler(params)
	} else {
		result, err = m.builtin(method, params)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (m *MockProvider) builtin(method string, params []any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch method {
	case "eth_requestAccounts", "eth_accounts":
		return m.accounts, nil
	case "eth_chainId":
		return m.chainID, nil
	case "wallet_switchEthereumChain":
		id, err := chainIDParam(params)
		if err != nil {
			return nil, err
		}
		if !m.knownChains[id] {
			return nil, &ProviderError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID " + id}
		}
		m.chainID = id
		return nil, nil
	case "wallet_addEthereumChain":
		id, err := chainIDParam(params)
		if err != nil {
			return nil, err
		}
		m.knownChains[id] = true
		return nil, nil
	default:
		return nil, &ProviderError{Code: CodeMethodNotFound, Message: "method not found: " + method}
	}
}

func chainIDParam(params []any) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("missing params")
	}
	data, err := json.Marshal(params[0])
	if err != nil {
		return "", err
	}
	var p struct {
		ChainID string `json:"chainId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return "", err
	}
	return NormalizeChainID(p.ChainID)
}
