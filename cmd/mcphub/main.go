package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brojonat/mcphub/client"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "mcphub",
		Usage: "MCP Hub marketplace CLI",
		Description: `A command-line tool for the MCP Hub marketplace.

Use this CLI to browse and submit listings, search the catalog, connect a
wallet to the configured network and follow marketplace events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			listingsCommands(),
			searchCommand(),
			walletCommands(),
			{
				Name:  "events",
				Usage: "Marketplace event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "MCP Hub server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "wallet-address",
				Aliases: []string{"w"},
				Usage:   "Wallet address sent with requests",
				EnvVars: []string{"MCPHUB_WALLET_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "admin-key",
				Usage:   "Hex private key of the admin wallet, used to sign admin requests",
				EnvVars: []string{"MCPHUB_ADMIN_KEY"},
			},
			&cli.DurationFlag{
				Name:  "http-timeout",
				Usage: "HTTP request timeout",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newLogger writes human-readable logs to stderr so stdout stays parseable.
func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newAPIClient(c *cli.Context) *client.Client {
	httpClient := &http.Client{Timeout: c.Duration("http-timeout")}
	cl := client.NewClient(c.String("server-url"), httpClient, newLogger(c))
	if addr := c.String("wallet-address"); addr != "" {
		cl = cl.WithWallet(addr)
	}
	return cl
}

// newAdminClient returns an API client that signs requests with --admin-key.
func newAdminClient(c *cli.Context) (*client.Client, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(c.String("admin-key")), "0x")
	if raw == "" {
		return nil, fmt.Errorf("admin-key is required (set MCPHUB_ADMIN_KEY or use --admin-key)")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid admin key: %w", err)
	}
	return newAPIClient(c).WithAdminKey(key), nil
}
