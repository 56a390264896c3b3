package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brojonat/mcphub/client"
	"github.com/brojonat/mcphub/service/db"
	"github.com/urfave/cli/v2"
)

func collectionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "collection",
		Aliases: []string{"c"},
		Usage:   "Listing collection (mcps or mcp-list)",
		Value:   string(db.CollectionMCPs),
	}
}

// collectionPath resolves the --collection flag to its URL segment.
func collectionPath(c *cli.Context) (string, error) {
	col, err := db.ParseCollection(c.String("collection"))
	if err != nil {
		return "", err
	}
	return col.Path(), nil
}

func listingsCommands() *cli.Command {
	return &cli.Command{
		Name:    "listings",
		Aliases: []string{"ls"},
		Usage:   "Browse and manage marketplace listings",
		Subcommands: []*cli.Command{
			listListingsCommand(),
			getListingCommand(),
			createListingCommand(),
			reviewCommand("approve", db.StatusApproved),
			reviewCommand("reject", db.StatusRejected),
			deleteListingCommand(),
		},
	}
}

func listListingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List listings in a collection",
		Description: `List listings, newest first.

Each --jq filter is evaluated against a listing and must be truthy for the
listing to be printed.

Example:
  mcphub listings list --status approved --jq '.price < 5' --jq '.tags | index("weather")'`,
		Flags: []cli.Flag{
			collectionFlag(),
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status (pending, approved, rejected)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of listings",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of listings to skip",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq predicate a listing must satisfy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			path, err := collectionPath(c)
			if err != nil {
				return err
			}
			codes, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			listings, err := newAPIClient(c).ListListings(context.Background(), path, client.ListOptions{
				Status: c.String("status"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list listings: %w", err)
			}
			listings, err = filterListings(listings, codes)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(listings)
			}
			if len(listings) == 0 {
				fmt.Println("No listings found")
				return nil
			}
			return writeListingsTable(os.Stdout, listings)
		},
	}
}

func getListingCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a single listing",
		ArgsUsage: "ID",
		Flags:     []cli.Flag{collectionFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("listing id is required")
			}
			path, err := collectionPath(c)
			if err != nil {
				return err
			}

			l, err := newAPIClient(c).GetListing(context.Background(), path, c.Args().First())
			if client.IsNotFound(err) {
				return fmt.Errorf("listing %s not found", c.Args().First())
			}
			if err != nil {
				return fmt.Errorf("failed to get listing: %w", err)
			}

			if c.Bool("json") {
				return printJSON(l)
			}
			writeListingDetail(os.Stdout, l)
			return nil
		},
	}
}

func createListingCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Submit a new listing for review",
		Description: `Submit a listing. New listings start as pending until an admin reviews them.

Example:
  mcphub listings create --collection mcp-list --title "Weather" \
    --description "Forecasts for any city" --price 2.5 \
    --endpoint https://weather.example.com/mcp --tag weather`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "collection",
				Usage: "Listing collection (mcps or mcp-list)",
				Value: string(db.CollectionMCPList),
			},
			&cli.StringFlag{Name: "title", Required: true, Usage: "Listing title"},
			&cli.StringFlag{Name: "description", Required: true, Usage: "Listing description"},
			&cli.Float64Flag{Name: "price", Required: true, Usage: "Price per call in tokens"},
			&cli.StringSliceFlag{Name: "endpoint", Required: true, Usage: "API endpoint URL (repeatable)"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag (repeatable)"},
			&cli.StringFlag{Name: "category", Usage: "Category"},
			&cli.StringFlag{Name: "owner", Usage: "Owner wallet address (defaults to --wallet-address)"},
		},
		Action: func(c *cli.Context) error {
			path, err := collectionPath(c)
			if err != nil {
				return err
			}
			owner := c.String("owner")
			if owner == "" {
				owner = c.String("wallet-address")
			}

			l, err := newAPIClient(c).CreateListing(context.Background(), path, client.CreateListingRequest{
				Title:        c.String("title"),
				Description:  c.String("description"),
				Price:        c.Float64("price"),
				APIEndpoints: c.StringSlice("endpoint"),
				Tags:         c.StringSlice("tag"),
				Category:     c.String("category"),
				Owner:        owner,
			})
			if err != nil {
				return fmt.Errorf("failed to create listing: %w", err)
			}

			if c.Bool("json") {
				return printJSON(l)
			}
			fmt.Printf("✓ Listing submitted for review\n")
			fmt.Printf("  ID:     %s\n", l.ID)
			fmt.Printf("  Status: %s\n", l.Status)
			return nil
		},
	}
}

func reviewCommand(name string, status db.Status) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("Mark a listing as %s (requires --admin-key)", status),
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			collectionFlag(),
			&cli.StringFlag{
				Name:  "reviewer",
				Usage: "Reviewer name recorded with the decision",
				Value: os.Getenv("USER"),
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("listing id is required")
			}
			api, err := newAdminClient(c)
			if err != nil {
				return err
			}
			path, err := collectionPath(c)
			if err != nil {
				return err
			}
			id := c.Args().First()

			res, err := api.UpdateStatus(context.Background(), path, id, string(status), c.String("reviewer"))
			if err != nil {
				return fmt.Errorf("failed to update listing: %w", err)
			}

			if c.Bool("json") {
				return printJSON(res)
			}
			if res.Pending {
				fmt.Printf("✓ Decision sent to review workflow %s\n", res.WorkflowID)
				return nil
			}
			fmt.Printf("✓ Listing %s is now %s\n", id, strings.ToLower(res.Listing.Status))
			return nil
		},
	}
}

func deleteListingCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a listing (requires --admin-key)",
		ArgsUsage: "ID",
		Flags:     []cli.Flag{collectionFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("listing id is required")
			}
			api, err := newAdminClient(c)
			if err != nil {
				return err
			}
			path, err := collectionPath(c)
			if err != nil {
				return err
			}
			id := c.Args().First()

			if err := api.DeleteListing(context.Background(), path, id); err != nil {
				return fmt.Errorf("failed to delete listing: %w", err)
			}
			if !c.Bool("json") {
				fmt.Printf("✓ Listing %s deleted\n", id)
			}
			return nil
		},
	}
}
