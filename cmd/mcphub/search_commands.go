package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brojonat/mcphub/client"
	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/search"
	"github.com/urfave/cli/v2"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search approved listings",
		ArgsUsage: "QUERY...",
		Description: `Search approved listings by title, description and tags.

Pro mode asks the inference service to re-rank the keyword matches and falls
back to the keyword order when it is unavailable.

With --interactive each line read from stdin replaces the query. Lines typed
in quick succession collapse into one search. ":pro" and ":basic" switch modes.

Example:
  mcphub search --mode pro weather forecast
  mcphub search --interactive --inference-api-key $HF_TOKEN`,
		Flags: []cli.Flag{
			collectionFlag(),
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Search mode (basic or pro)",
				Value:   string(search.ModeBasic),
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Read queries from stdin and search locally as you type",
			},
			&cli.StringFlag{
				Name:    "inference-url",
				Usage:   "Similarity model used by interactive pro mode",
				EnvVars: []string{"INFERENCE_URL"},
				Value:   search.DefaultInferenceURL,
			},
			&cli.StringFlag{
				Name:    "inference-api-key",
				Usage:   "API key for the similarity model",
				EnvVars: []string{"INFERENCE_API_KEY"},
			},
		},
		Action: func(c *cli.Context) error {
			mode := search.ParseMode(c.String("mode"))
			path, err := collectionPath(c)
			if err != nil {
				return err
			}
			if c.Bool("interactive") {
				return interactiveSearch(c, path, mode == search.ModePro, os.Stdin)
			}

			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return fmt.Errorf("search query is required")
			}

			resp, err := newAPIClient(c).Search(context.Background(), path, query, string(mode))
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if c.Bool("json") {
				return printJSON(resp)
			}
			if resp.Degraded {
				fmt.Fprintln(os.Stderr, "note: re-ranking unavailable, showing keyword matches")
			}
			if resp.Count == 0 {
				fmt.Printf("No listings match %q\n", query)
				return nil
			}
			return writeSearchTable(os.Stdout, resp)
		},
	}
}

// interactiveSearch drives a search.Widget from lines on in. Listings are
// fetched from the server on each search and ranked locally.
func interactiveSearch(c *cli.Context, collection string, pro bool, in io.Reader) error {
	logger := newLogger(c)
	api := newAPIClient(c)
	jsonOutput := c.Bool("json")

	scorer := search.NewInferenceScorer(
		c.String("inference-url"),
		c.String("inference-api-key"),
		&http.Client{Timeout: 10 * time.Second},
		nil,
		logger,
	)
	widget := search.NewWidget(search.WidgetConfig{
		Ranker: search.NewRanker(search.RankerConfig{Scorer: scorer, Logger: logger}),
		Source: listingSource(api, collection),
		OnResults: func(resp search.Response) {
			if jsonOutput {
				_ = printJSON(resp)
				return
			}
			printWidgetResults(os.Stdout, resp)
		},
		Logger: logger,
	})
	defer widget.Close()
	if pro {
		widget.SetProMode(true)
	}

	if !jsonOutput {
		fmt.Fprintln(os.Stderr, "Type a query (\":pro\" or \":basic\" to switch modes, Ctrl-D to exit)")
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		applyInput(widget, scanner.Text())
	}
	// Let the last debounced search land before exiting.
	time.Sleep(search.DefaultQueryDelay + 50*time.Millisecond)
	return scanner.Err()
}

// widgetInput is the subset of search.Widget fed by user input.
type widgetInput interface {
	OnQueryChange(text string)
	SetProMode(pro bool)
}

func applyInput(w widgetInput, line string) {
	switch strings.TrimSpace(line) {
	case ":pro":
		w.SetProMode(true)
	case ":basic":
		w.SetProMode(false)
	default:
		w.OnQueryChange(line)
	}
}

// listingSource lists a collection's approved listings as search items.
func listingSource(api *client.Client, collection string) search.Source {
	return func(ctx context.Context) ([]search.Item, error) {
		listings, err := api.ListListings(ctx, collection, client.ListOptions{
			Status: string(db.StatusApproved),
			Limit:  1000,
		})
		if err != nil {
			return nil, err
		}
		items := make([]search.Item, len(listings))
		for i, l := range listings {
			items[i] = search.Item{ID: l.ID, Title: l.Title, Description: l.Description, Tags: l.Tags}
		}
		return items, nil
	}
}

func printWidgetResults(out io.Writer, resp search.Response) {
	if strings.TrimSpace(resp.Query) == "" {
		return
	}
	if resp.Error != "" {
		fmt.Fprintf(out, "\nsearch for %q failed: %s\n", resp.Query, resp.Error)
		return
	}
	results := make([]client.SearchResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = client.SearchResult{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Tags:        r.Tags,
			Score:       r.Score,
		}
	}
	fmt.Fprintf(out, "\n%d result(s) for %q [%s]\n", len(results), resp.Query, resp.Mode)
	if resp.Degraded {
		fmt.Fprintln(out, "re-ranking unavailable, showing keyword matches")
	}
	if len(results) > 0 {
		_ = writeSearchTable(out, &client.SearchResponse{Results: results})
	}
}
