package wallet

import "errors"

var (
	// ErrMissingProvider is returned when no wallet provider is available.
	ErrMissingProvider = errors.New("no wallet provider available")
	// ErrUserRejected is returned when the user declines the connection request.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrContractCallFailed is returned when binding or reading a contract fails.
	ErrContractCallFailed = errors.New("contract call failed")
	// ErrPersistenceRead is returned when the stored wallet state cannot be read.
	ErrPersistenceRead = errors.New("failed to read persisted wallet state")
	// ErrConnectSuperseded is returned when a disconnect or another connect
	// committed while this connect was waiting on the wallet.
	ErrConnectSuperseded = errors.New("connection superseded by a newer wallet action")
)
