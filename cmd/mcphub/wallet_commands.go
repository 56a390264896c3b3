package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/brojonat/mcphub/service/chain"
	"github.com/brojonat/mcphub/service/contracts"
	natspkg "github.com/brojonat/mcphub/service/nats"
	"github.com/brojonat/mcphub/service/wallet"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "storage",
			Usage: "Where wallet state is kept (file or nats)",
			Value: "file",
		},
		&cli.StringFlag{
			Name:    "state-dir",
			Usage:   "Directory for file storage (defaults to the user config dir)",
			EnvVars: []string{"MCPHUB_STATE_DIR"},
		},
		&cli.StringFlag{
			Name:    "admin-address",
			Usage:   "Admin wallet address",
			EnvVars: []string{"ADMIN_ADDRESS"},
		},
	}

	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet connection commands",
		Subcommands: []*cli.Command{
			walletConnectCommand(flags),
			walletStatusCommand(flags),
			walletDisconnectCommand(flags),
		},
	}
}

func walletConnectCommand(common []cli.Flag) *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "rpc-url",
			Usage:   "JSON-RPC endpoint of the wallet provider",
			EnvVars: []string{"WALLET_RPC_URL"},
			Value:   "http://localhost:8545",
		},
		&cli.StringFlag{
			Name:    "chain-id",
			Usage:   "Chain id the wallet must be on",
			EnvVars: []string{"CHAIN_ID"},
			Value:   chain.RootstockTestnet.ChainID,
		},
		&cli.StringFlag{Name: "token-address", EnvVars: []string{"TOKEN_ADDRESS"}, Usage: "Token contract address"},
		&cli.StringFlag{Name: "pool-address", EnvVars: []string{"POOL_ADDRESS"}, Usage: "Pool contract address"},
		&cli.StringFlag{Name: "dao-address", EnvVars: []string{"DAO_ADDRESS"}, Usage: "DAO contract address"},
		&cli.StringFlag{Name: "billing-address", EnvVars: []string{"BILLING_ADDRESS"}, Usage: "Billing contract address"},
		&cli.BoolFlag{
			Name:  "publish",
			Usage: "Also publish wallet notifications to NATS",
		},
		&cli.BoolFlag{
			Name:  "restore",
			Usage: "Only reconnect when a previous session was saved",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for the wallet",
			Value: 2 * time.Minute,
		},
	}, common...)

	return &cli.Command{
		Name:  "connect",
		Usage: "Connect a wallet, switching it to the marketplace network",
		Description: `Request accounts from the wallet provider, make sure it is on the configured
network (adding the network when the wallet does not know it), bind the
marketplace contracts and read the token balance.

Example:
  mcphub wallet connect --rpc-url http://localhost:8545 --token-address 0x...`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			addrs, err := contracts.ParseAddresses(
				c.String("token-address"),
				c.String("pool-address"),
				c.String("dao-address"),
				c.String("billing-address"),
			)
			if err != nil {
				return err
			}
			network := chain.RootstockTestnet
			network.ChainID = c.String("chain-id")
			if err := network.Validate(); err != nil {
				return err
			}

			storage, closeStorage, err := openWalletStorage(ctx, c, logger)
			if err != nil {
				return err
			}
			defer closeStorage()

			notifier := wallet.MultiNotifier{consoleNotifier(c.Bool("json"))}
			if c.Bool("publish") {
				publisher, err := natspkg.NewPublisher(c.String("nats-url"), nil, logger)
				if err != nil {
					return err
				}
				defer publisher.Close()
				notifier = append(notifier, publisher)
			}

			provider, err := chain.DialProvider(ctx, c.String("rpc-url"), logger)
			if err != nil {
				return err
			}
			defer provider.Close()

			mgr := wallet.NewManager(wallet.Options{
				Provider:     provider,
				Network:      network,
				Contracts:    addrs,
				AdminAddress: c.String("admin-address"),
				Storage:      storage,
				Notifier:     notifier,
				Logger:       logger,
			})

			var session *wallet.Session
			if c.Bool("restore") {
				session, err = mgr.Restore(ctx)
			} else {
				session, err = mgr.Connect(ctx, true)
			}
			if err != nil {
				return err
			}
			if session == nil {
				fmt.Fprintln(os.Stderr, "No saved session to restore")
				return nil
			}

			if c.Bool("json") {
				return printJSON(statusView(mgr.State(), c.String("admin-address")))
			}
			printWalletState(mgr.State(), c.String("admin-address"))
			return nil
		},
	}
}

func walletStatusCommand(flags []cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the saved wallet state",
		Flags: flags,
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			ctx := context.Background()

			storage, closeStorage, err := openWalletStorage(ctx, c, logger)
			if err != nil {
				return err
			}
			defer closeStorage()

			state, err := loadWalletState(ctx, storage)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(statusView(state, c.String("admin-address")))
			}
			printWalletState(state, c.String("admin-address"))
			return nil
		},
	}
}

func walletDisconnectCommand(flags []cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Forget the saved wallet session",
		Flags: flags,
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			ctx := context.Background()

			storage, closeStorage, err := openWalletStorage(ctx, c, logger)
			if err != nil {
				return err
			}
			defer closeStorage()

			mgr := wallet.NewManager(wallet.Options{
				Storage:  storage,
				Notifier: consoleNotifier(c.Bool("json")),
				Logger:   logger,
			})
			mgr.Disconnect(ctx)
			return nil
		},
	}
}

// openWalletStorage returns the configured wallet.Storage and a func that
// releases it.
func openWalletStorage(ctx context.Context, c *cli.Context, logger *slog.Logger) (wallet.Storage, func(), error) {
	switch c.String("storage") {
	case "file":
		dir, err := stateDir(c.String("state-dir"))
		if err != nil {
			return nil, nil, err
		}
		return wallet.NewFileStorage(dir), func() {}, nil
	case "nats":
		publisher, err := natspkg.NewPublisher(c.String("nats-url"), nil, logger)
		if err != nil {
			return nil, nil, err
		}
		kv, err := publisher.WalletStorage(ctx, natspkg.DefaultWalletBucket)
		if err != nil {
			publisher.Close()
			return nil, nil, err
		}
		return kv, func() { publisher.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q (want file or nats)", c.String("storage"))
	}
}

func stateDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(base, "mcphub"), nil
}

// loadWalletState reads the persisted state. A missing record is the
// disconnected state.
func loadWalletState(ctx context.Context, storage wallet.Storage) (wallet.State, error) {
	data, err := storage.Load(ctx, wallet.StorageKey)
	if err != nil {
		return wallet.State{}, err
	}
	if data == nil {
		return wallet.Disconnected, nil
	}
	var state wallet.State
	if err := json.Unmarshal(data, &state); err != nil {
		return wallet.State{}, fmt.Errorf("saved wallet state is corrupt: %w", err)
	}
	return state, nil
}

type walletStatus struct {
	Connected bool   `json:"connected"`
	Account   string `json:"account,omitempty"`
	Balance   string `json:"balance"`
	Admin     bool   `json:"admin"`
}

func statusView(state wallet.State, admin string) walletStatus {
	return walletStatus{
		Connected: state.Connected(),
		Account:   state.Account,
		Balance:   state.Balance,
		Admin:     wallet.IsAdminAddress(state.Account, admin),
	}
}

func printWalletState(state wallet.State, admin string) {
	if !state.Connected() {
		fmt.Println("Wallet: not connected")
		return
	}
	fmt.Printf("Wallet:  %s\n", state.Account)
	fmt.Printf("Balance: %s\n", state.Balance)
	if wallet.IsAdminAddress(state.Account, admin) {
		fmt.Println("Role:    admin")
	}
}

// consoleNotifier prints wallet notifications to stderr. JSON mode keeps
// stdout for the final result only.
func consoleNotifier(jsonOutput bool) wallet.Notifier {
	return wallet.NotifierFunc(func(ctx context.Context, n wallet.Notification) {
		if jsonOutput {
			return
		}
		mark := "•"
		switch n.Level {
		case wallet.LevelSuccess:
			mark = "✓"
		case wallet.LevelError:
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", mark, n.Title, n.Message)
	})
}
