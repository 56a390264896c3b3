package wallet

import (
	"strings"

	"github.com/brojonat/mcphub/service/chain"
	"github.com/brojonat/mcphub/service/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// StorageKey is the key the wallet state is persisted under.
const StorageKey = "walletState"

// State is the persisted view of the wallet. Only these two fields survive a restart.
type State struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// Disconnected is the state with no wallet attached.
var Disconnected = State{Account: "", Balance: "0"}

// Connected reports whether the state holds an account.
func (s State) Connected() bool {
	return s.Account != ""
}

// Session exists between a successful connect and the next disconnect.
type Session struct {
	Account common.Address
	Network chain.NetworkConfig
	Signer  *bind.TransactOpts
	Handles *contracts.Handles
}

// IsAdminAddress reports whether account equals the admin address, ignoring case.
func IsAdminAddress(account, admin string) bool {
	if account == "" || admin == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(account), strings.TrimSpace(admin))
}
