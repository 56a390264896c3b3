package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/brojonat/mcphub/client"
	"github.com/itchyny/gojq"
)

// compileFilters parses and compiles jq expressions used as predicates.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, 0, len(filters))
	for _, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// toJQValue converts a Go value into the generic maps and slices gojq
// operates on.
func toJQValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchesAll reports whether every filter's first result is truthy for v.
func matchesAll(codes []*gojq.Code, v any) (bool, error) {
	if len(codes) == 0 {
		return true, nil
	}
	input, err := toJQValue(v)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		iter := code.Run(input)
		result, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, ok := result.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return false, nil
			}
			return false, err
		}
		if !isTruthy(result) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy follows jq: false and null are falsy, everything else is truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// filterListings keeps the listings every filter accepts.
func filterListings(listings []*client.Listing, codes []*gojq.Code) ([]*client.Listing, error) {
	if len(codes) == 0 {
		return listings, nil
	}
	kept := make([]*client.Listing, 0, len(listings))
	for _, l := range listings {
		ok, err := matchesAll(codes, l)
		if err != nil {
			return nil, fmt.Errorf("jq filter failed on listing %s: %w", l.ID, err)
		}
		if ok {
			kept = append(kept, l)
		}
	}
	return kept, nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeListingsTable(out io.Writer, listings []*client.Listing) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tSTATUS\tTAGS\tCREATED")
	fmt.Fprintln(w, "--\t-----\t-----\t------\t----\t-------")
	for _, l := range listings {
		created := "-"
		if !l.CreatedAt.IsZero() {
			created = l.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			l.ID,
			truncate(l.Title, 40),
			l.Price,
			l.Status,
			strings.Join(l.Tags, ","),
			created,
		)
	}
	return w.Flush()
}

func writeListingDetail(out io.Writer, l *client.Listing) {
	fmt.Fprintf(out, "ID:          %s\n", l.ID)
	fmt.Fprintf(out, "Title:       %s\n", l.Title)
	fmt.Fprintf(out, "Description: %s\n", l.Description)
	fmt.Fprintf(out, "Price:       %.2f\n", l.Price)
	fmt.Fprintf(out, "Status:      %s\n", l.Status)
	if l.Category != "" {
		fmt.Fprintf(out, "Category:    %s\n", l.Category)
	}
	if l.Owner != "" {
		fmt.Fprintf(out, "Owner:       %s\n", l.Owner)
	}
	if len(l.Tags) > 0 {
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(l.Tags, ", "))
	}
	fmt.Fprintf(out, "Endpoints:\n")
	for _, ep := range l.APIEndpoints {
		fmt.Fprintf(out, "  - %s\n", ep)
	}
	if !l.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created:     %s\n", l.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
}

func writeSearchTable(out io.Writer, resp *client.SearchResponse) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tTITLE\tSCORE\tTAGS")
	for i, r := range resp.Results {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.3f", *r.Score)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			i+1, r.ID, truncate(r.Title, 40), score, strings.Join(r.Tags, ","))
	}
	return w.Flush()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
