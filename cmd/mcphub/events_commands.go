package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brojonat/mcphub/service/db"
	natspkg "github.com/brojonat/mcphub/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams marketplace events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream marketplace events",
		ArgsUsage: "[all|listings|wallet]",
		Description: `Subscribe to listing and wallet events published to NATS JetStream.

Listing events go to events.listings.{collection} and wallet events to
events.wallet.{kind}. Each --jq filter must be truthy for an event to print.

Example:
  mcphub events subscribe listings --collection mcp-list --jq '.type == "listing.created"'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Only listing events for this collection",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq predicate an event must satisfy (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "mcphub-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject, err := eventSubject(c.Args().First(), c.String("collection"))
			if err != nil {
				return err
			}
			codes, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			jsonOutput := c.Bool("json")

			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			cfg := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			}
			if c.Bool("durable") {
				cfg.Durable = c.String("consumer-name")
				cfg.Name = c.String("consumer-name")
			}
			cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, cfg)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			if !jsonOutput {
				fmt.Printf("📡 Subscribing to: %s\n", subject)
				fmt.Printf("\nWaiting for events... (Ctrl-C to exit)\n\n")
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to start consuming: %w", err)
			}
			defer consumeCtx.Stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event map[string]any
					if err := json.Unmarshal(msg.Data(), &event); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing event on %s: %v\n", msg.Subject(), err)
						msg.Ack()
						continue
					}
					ok, err := matchesAll(codes, event)
					if err != nil {
						fmt.Fprintf(os.Stderr, "jq filter error: %v\n", err)
					}
					if ok {
						count++
						if jsonOutput {
							fmt.Println(string(msg.Data()))
						} else {
							fmt.Println(describeEvent(msg.Subject(), event))
						}
					}
					msg.Ack()

				case <-sigChan:
					if !jsonOutput {
						fmt.Printf("\n\nReceived %d event(s). Exiting.\n", count)
					}
					return nil
				}
			}
		},
	}
}

// eventSubject maps a topic and optional collection to a JetStream subject.
func eventSubject(topic, collection string) (string, error) {
	switch topic {
	case "", "all":
		if collection != "" {
			return "", fmt.Errorf("--collection requires the listings topic")
		}
		return natspkg.StreamSubjects, nil
	case "listings":
		if collection == "" {
			return natspkg.SubjectPrefix + "listings.>", nil
		}
		col, err := db.ParseCollection(collection)
		if err != nil {
			return "", err
		}
		return natspkg.ListingSubject(string(col)), nil
	case "wallet":
		if collection != "" {
			return "", fmt.Errorf("--collection requires the listings topic")
		}
		return natspkg.SubjectPrefix + "wallet.>", nil
	default:
		return "", fmt.Errorf("unknown topic %q (want all, listings or wallet)", topic)
	}
}

// describeEvent renders an event as a single human-readable line.
func describeEvent(subject string, event map[string]any) string {
	str := func(key string) string {
		s, _ := event[key].(string)
		return s
	}
	ts := time.Now().Format("15:04:05")
	if published, err := time.Parse(time.RFC3339Nano, str("published_at")); err == nil {
		ts = published.Local().Format("15:04:05")
	}

	if strings.HasPrefix(subject, natspkg.SubjectPrefix+"wallet.") {
		line := fmt.Sprintf("[%s] wallet %s: %s", ts, str("kind"), str("title"))
		if acct := str("account"); acct != "" {
			line += " (" + acct + ")"
		}
		return line
	}

	line := fmt.Sprintf("[%s] %s %s/%s", ts, str("type"), str("collection"), str("listing_id"))
	if title := str("title"); title != "" {
		line += fmt.Sprintf(" %q", title)
	}
	if status := str("status"); status != "" {
		line += " status=" + status
	}
	if reviewer := str("reviewer"); reviewer != "" {
		line += " by " + reviewer
	}
	return line
}
