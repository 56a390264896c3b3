package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/brojonat/mcphub/service/chain"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrSignerMismatch is returned when a transaction is signed for an account
// other than the session's.
var ErrSignerMismatch = errors.New("transaction sender does not match connected account")

// NewProviderSigner returns transact options whose signing is delegated to
// the wallet via eth_signTransaction. Private keys never leave the wallet.
func NewProviderSigner(p chain.Provider, from common.Address, chainID *big.Int) *bind.TransactOpts {
	opts := &bind.TransactOpts{From: from}
	opts.Signer = func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if addr != from {
			return nil, ErrSignerMismatch
		}

		ctx := opts.Context
		if ctx == nil {
			ctx = context.Background()
		}

		raw, err := p.Request(ctx, "eth_signTransaction", signTxArgs(from, chainID, tx))
		if err != nil {
			return nil, fmt.Errorf("wallet refused to sign: %w", err)
		}

		signed, err := decodeSignedTx(raw)
		if err != nil {
			return nil, err
		}
		if signed.Hash() == tx.Hash() {
			return nil, fmt.Errorf("wallet returned an unsigned transaction")
		}
		return signed, nil
	}
	return opts
}

func signTxArgs(from common.Address, chainID *big.Int, tx *types.Transaction) map[string]any {
	args := map[string]any{
		"from":  from,
		"gas":   hexutil.Uint64(tx.Gas()),
		"nonce": hexutil.Uint64(tx.Nonce()),
		"value": (*hexutil.Big)(tx.Value()),
		"data":  hexutil.Bytes(tx.Data()),
	}
	if tx.To() != nil {
		args["to"] = *tx.To()
	}
	if chainID != nil {
		args["chainId"] = (*hexutil.Big)(chainID)
	}
	if tx.Type() == types.DynamicFeeTxType {
		args["maxFeePerGas"] = (*hexutil.Big)(tx.GasFeeCap())
		args["maxPriorityFeePerGas"] = (*hexutil.Big)(tx.GasTipCap())
	} else {
		args["gasPrice"] = (*hexutil.Big)(tx.GasPrice())
	}
	return args
}

// decodeSignedTx accepts either a bare RLP hex string or the
// {"raw": "0x..", "tx": {...}} object returned by geth-style nodes.
func decodeSignedTx(raw json.RawMessage) (*types.Transaction, error) {
	var encoded hexutil.Bytes
	if err := json.Unmarshal(raw, &encoded); err != nil {
		var wrapped struct {
			Raw hexutil.Bytes `json:"raw"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
		}
		encoded = wrapped.Raw
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("wallet returned an empty signed transaction")
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(encoded); err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	return tx, nil
}
