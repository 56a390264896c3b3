package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brojonat/mcphub/service/chain"
	"github.com/brojonat/mcphub/service/contracts"
	"github.com/brojonat/mcphub/service/metrics"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Options configures a Manager.
type Options struct {
	// Provider is the injected wallet. A nil provider makes Connect fail
	// with ErrMissingProvider.
	Provider chain.Provider
	// Backend serves contract calls. When nil and the provider can supply
	// one (RPCProvider), the provider's backend is used.
	Backend      bind.ContractBackend
	Network      chain.NetworkConfig
	Contracts    contracts.Addresses
	AdminAddress string
	Storage      Storage
	Notifier     Notifier
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

type backendSource interface {
	Backend() *ethclient.Client
}

// Manager owns the wallet connection. There is one Manager per user
// context; it is passed explicitly to whoever needs it.
type Manager struct {
	provider  chain.Provider
	backend   bind.ContractBackend
	network   chain.NetworkConfig
	addresses contracts.Addresses
	admin     string
	storage   Storage
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// transitionMu serialises transitions; mu guards the fields below.
	transitionMu sync.Mutex
	mu           sync.RWMutex
	state        State
	session      *Session
	observers    []func(State)
	// epoch counts committed transitions. A connect attempt only commits
	// if no other transition happened while it was talking to the wallet.
	epoch uint64
}

// anyEpoch makes a transition unconditional.
const anyEpoch = ^uint64(0)

// NewManager creates a disconnected Manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(opts.Logger)
	}
	if opts.Backend == nil {
		if src, ok := opts.Provider.(backendSource); ok {
			opts.Backend = src.Backend()
		}
	}

	return &Manager{
		provider:  opts.Provider,
		backend:   opts.Backend,
		network:   opts.Network,
		addresses: opts.Contracts,
		admin:     opts.AdminAddress,
		storage:   opts.Storage,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "wallet"),
		state:     Disconnected,
	}
}

// State returns a snapshot of the current wallet state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns the active session, or nil when disconnected.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// IsConnected reports whether an account is connected.
func (m *Manager) IsConnected() bool {
	return m.State().Connected()
}

// IsAdmin reports whether the connected account is the admin.
func (m *Manager) IsAdmin() bool {
	return IsAdminAddress(m.State().Account, m.admin)
}

// Subscribe registers fn to receive every committed state. Observers run
// synchronously after the state is persisted and must not call Connect or
// Disconnect.
func (m *Manager) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Connect requests accounts, makes sure the wallet is on the configured
// network, binds the contracts and reads the token balance. State only
// changes when every step succeeds.
func (m *Manager) Connect(ctx context.Context, showFeedback bool) (*Session, error) {
	m.mu.RLock()
	since := m.epoch
	m.mu.RUnlock()

	session, state, err := m.establish(ctx)
	if err != nil {
		m.metrics.RecordWalletConnect(outcomeFor(err))
		m.fail(ctx, err)
		return nil, err
	}

	if !m.transition(ctx, since, state, session) {
		m.metrics.RecordWalletConnect(outcomeFor(ErrConnectSuperseded))
		m.logger.InfoContext(ctx, "discarding superseded wallet connection", "account", state.Account)
		return nil, ErrConnectSuperseded
	}
	m.metrics.RecordWalletConnect("success")

	m.logger.InfoContext(ctx, "wallet connected",
		"account", state.Account,
		"balance", state.Balance,
		"chain_id", session.Network.ChainID,
	)
	if showFeedback {
		m.notifier.Notify(ctx, Notification{
			Kind:    KindConnected,
			Level:   LevelSuccess,
			Title:   "Wallet connected",
			Message: fmt.Sprintf("Connected to %s", m.network.ChainName),
			Account: state.Account,
		})
	}
	return session, nil
}

func (m *Manager) establish(ctx context.Context) (*Session, State, error) {
	if m.provider == nil {
		return nil, State{}, ErrMissingProvider
	}

	accounts, err := chain.RequestAccounts(ctx, m.provider)
	if err != nil {
		if chain.IsUserRejected(err) {
			return nil, State{}, fmt.Errorf("%w: %w", ErrUserRejected, err)
		}
		return nil, State{}, fmt.Errorf("requesting accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, State{}, fmt.Errorf("%w: wallet returned no accounts", ErrUserRejected)
	}
	account := accounts[0]

	if err := chain.EnsureNetwork(ctx, m.provider, m.network, m.logger); err != nil {
		return nil, State{}, err
	}

	if m.backend == nil {
		return nil, State{}, fmt.Errorf("%w: no contract backend configured", ErrContractCallFailed)
	}
	chainID, err := chain.ParseChainID(m.network.ChainID)
	if err != nil {
		return nil, State{}, err
	}

	handles, err := contracts.Bind(m.addresses, m.backend)
	if err != nil {
		return nil, State{}, fmt.Errorf("%w: %w", ErrContractCallFailed, err)
	}

	balance, err := handles.Token.BalanceOf(ctx, account)
	if err != nil {
		return nil, State{}, fmt.Errorf("%w: %w", ErrContractCallFailed, err)
	}
	decimals, err := handles.Token.Decimals(ctx)
	if err != nil {
		return nil, State{}, fmt.Errorf("%w: %w", ErrContractCallFailed, err)
	}

	session := &Session{
		Account: account,
		Network: m.network,
		Signer:  contracts.NewProviderSigner(m.provider, account, chainID),
		Handles: handles,
	}
	state := State{
		Account: account.Hex(),
		Balance: contracts.FormatUnits(balance, decimals),
	}
	return session, state, nil
}

// Disconnect drops the session and resets the state. Calling it twice has
// the same effect as calling it once.
func (m *Manager) Disconnect(ctx context.Context) {
	m.transition(ctx, anyEpoch, Disconnected, nil)
	m.logger.InfoContext(ctx, "wallet disconnected")
	m.notifier.Notify(ctx, Notification{
		Kind:    KindDisconnected,
		Level:   LevelInfo,
		Title:   "Wallet disconnected",
		Message: "Your wallet has been disconnected",
	})
}

// Restore reconnects silently when a previous session left an account in
// storage. A missing or unreadable record leaves the wallet disconnected.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	prev, err := m.load(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "ignoring persisted wallet state", "error", err)
		return nil, nil
	}
	if !prev.Connected() {
		return nil, nil
	}

	m.logger.InfoContext(ctx, "restoring wallet session", "account", prev.Account)
	return m.Connect(ctx, false)
}

func (m *Manager) load(ctx context.Context) (State, error) {
	data, err := m.storage.Load(ctx, StorageKey)
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrPersistenceRead, err)
	}
	if data == nil {
		return Disconnected, nil
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrPersistenceRead, err)
	}
	return s, nil
}

// transition is the only place state changes. It updates memory, persists
// and notifies observers before the next transition may start. Unless since
// is anyEpoch, it commits nothing and returns false when another transition
// has happened since epoch since was read.
func (m *Manager) transition(ctx context.Context, since uint64, next State, session *Session) bool {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if since != anyEpoch && since != m.epoch {
		m.mu.Unlock()
		return false
	}
	m.epoch++
	m.state = next
	m.session = session
	observers := make([]func(State), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	data, err := json.Marshal(next)
	if err == nil {
		err = m.storage.Save(ctx, StorageKey, data)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "failed to persist wallet state", "error", err)
	}

	for _, fn := range observers {
		fn(next)
	}
	return true
}

func (m *Manager) fail(ctx context.Context, err error) {
	m.logger.ErrorContext(ctx, "wallet connection failed", "error", err)
	m.notifier.Notify(ctx, Notification{
		Kind:    KindError,
		Level:   LevelError,
		Title:   "Wallet connection failed",
		Message: userMessage(err),
	})
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingProvider):
		return "No wallet found. Install a browser wallet to continue."
	case errors.Is(err, ErrUserRejected):
		return "The connection request was rejected."
	case errors.Is(err, chain.ErrUnsupportedChain):
		return "Your wallet could not add the required network."
	case errors.Is(err, chain.ErrChainSwitchFailed):
		return "Please switch your wallet to the required network."
	case errors.Is(err, ErrContractCallFailed):
		return "Could not read your token balance."
	default:
		return err.Error()
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrMissingProvider):
		return "missing_provider"
	case errors.Is(err, ErrUserRejected):
		return "rejected"
	case errors.Is(err, chain.ErrChainSwitchFailed):
		return "wrong_network"
	case errors.Is(err, ErrContractCallFailed):
		return "contract_error"
	case errors.Is(err, ErrConnectSuperseded):
		return "superseded"
	default:
		return "error"
	}
}
