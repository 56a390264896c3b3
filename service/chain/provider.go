package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 and JSON-RPC error codes the connection flow reacts to.
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
	CodeMethodNotFound    = -32601
)

// Provider is the injected wallet: an EIP-1193 style request function.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// ProviderError is an error returned by the wallet with an EIP-1193 code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode implements rpc.Error.
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// ErrorCode extracts a provider error code from err.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// IsUserRejected reports whether the user declined a wallet prompt.
func IsUserRejected(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}

// RPCProvider serves wallet requests from a JSON-RPC node. It is used by
// headless clients (CLI, tests against a dev node) that hold an unlocked
// account on the node instead of a browser extension.
type RPCProvider struct {
	client *rpc.Client
	logger *slog.Logger
}

// DialProvider connects to a JSON-RPC endpoint.
func DialProvider(ctx context.Context, rawurl string, logger *slog.Logger) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return NewRPCProvider(c, logger), nil
}

// NewRPCProvider wraps an existing rpc client.
func NewRPCProvider(c *rpc.Client, logger *slog.Logger) *RPCProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCProvider{client: c, logger: logger}
}

// Request performs a JSON-RPC call and returns the raw result.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, method, params...); err != nil {
		p.logger.DebugContext(ctx, "provider request failed", "method", method, "error", err)
		if code, ok := ErrorCode(err); ok {
			return nil, &ProviderError{Code: code, Message: err.Error()}
		}
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return raw, nil
}

// Backend returns a contract backend sharing the provider's connection.
func (p *RPCProvider) Backend() *ethclient.Client {
	return ethclient.NewClient(p.client)
}

// Close releases the underlying connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}

// RequestAccounts asks the wallet for access to its accounts. Wallets that do
// not implement eth_requestAccounts fall back to eth_accounts.
func RequestAccounts(ctx context.Context, p Provider) ([]common.Address, error) {
	raw, err := p.Request(ctx, "eth_requestAccounts")
	if code, ok := ErrorCode(err); ok && code == CodeMethodNotFound {
		raw, err = p.Request(ctx, "eth_accounts")
	}
	if err != nil {
		return nil, err
	}

	var hexes []string
	if err := json.Unmarshal(raw, &hexes); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}

	accounts := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		if !common.IsHexAddress(h) {
			return nil, fmt.Errorf("wallet returned invalid account %q", h)
		}
		accounts = append(accounts, common.HexToAddress(h))
	}
	return accounts, nil
}

// ChainID returns the wallet's current chain id in canonical form.
func ChainID(ctx context.Context, p Provider) (string, error) {
	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("failed to decode chain id: %w", err)
	}
	return NormalizeChainID(strings.TrimSpace(id))
}
