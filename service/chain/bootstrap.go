package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrUnsupportedChain is returned when the wallet does not know the target chain.
	ErrUnsupportedChain = errors.New("chain not recognized by wallet")
	// ErrChainSwitchFailed is returned when the wallet could not be moved to the target chain.
	ErrChainSwitchFailed = errors.New("failed to switch wallet network")
)

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

// EnsureNetwork makes sure the wallet is on the target network. If the wallet
// is elsewhere it is asked to switch; if it reports the chain as unknown the
// chain is added and the switch is retried once.
func EnsureNetwork(ctx context.Context, p Provider, network NetworkConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	network = network.normalized()

	current, err := ChainID(ctx, p)
	if err != nil {
		return fmt.Errorf("%w: reading current chain: %w", ErrChainSwitchFailed, err)
	}
	if network.Matches(current) {
		return nil
	}

	logger.InfoContext(ctx, "switching wallet network",
		"from", current,
		"to", network.ChainID,
		"chain_name", network.ChainName,
	)

	err = switchChain(ctx, p, network.ChainID)
	if err == nil {
		return nil
	}

	code, ok := ErrorCode(err)
	if !ok || code != CodeUnrecognizedChain {
		return fmt.Errorf("%w: %w", ErrChainSwitchFailed, err)
	}

	logger.InfoContext(ctx, "wallet does not know network, adding it", "chain_id", network.ChainID)

	if _, err := p.Request(ctx, "wallet_addEthereumChain", network); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrChainSwitchFailed, ErrUnsupportedChain, err)
	}

	if err := switchChain(ctx, p, network.ChainID); err != nil {
		return fmt.Errorf("%w: after adding chain: %w", ErrChainSwitchFailed, err)
	}
	return nil
}

func switchChain(ctx context.Context, p Provider, chainID string) error {
	_, err := p.Request(ctx, "wallet_switchEthereumChain", switchChainParams{ChainID: chainID})
	return err
}
