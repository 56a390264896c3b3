// Package mcptools exposes the marketplace catalog as MCP tools so that
// agents can browse and search listings.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/search"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// listing is the tool-facing view of a db.Listing.
type listing struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	APIEndpoints []string  `json:"apiEndpoints"`
	Tags         []string  `json:"tags,omitempty"`
	Category     string    `json:"category,omitempty"`
	Owner        string    `json:"owner,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toListing(l *db.Listing) listing {
	return listing{
		ID:           l.ID,
		Title:        l.Title,
		Description:  l.Description,
		Price:        l.Price,
		APIEndpoints: l.APIEndpoints,
		Tags:         l.Tags,
		Category:     l.Category,
		Owner:        l.Owner,
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt,
	}
}

type listArgs struct {
	Collection string `json:"collection"`
	Status     string `json:"status"`
	Limit      int32  `json:"limit"`
}

type getArgs struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type searchArgs struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	Mode       string `json:"mode"`
}

var collectionSchema = map[string]any{
	"type":        "string",
	"enum":        []string{"mcps", "mcp_list"},
	"description": "Listing collection (default mcps)",
}

// NewServer builds an MCP server with list_mcps, get_mcp and search_mcps.
// ranker may be nil, in which case search_mcps only filters.
func NewServer(store db.ListingStore, ranker *search.Ranker, version string, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ranker == nil {
		ranker = search.NewRanker(search.RankerConfig{Logger: logger})
	}
	logger = logger.With("component", "mcp_tools")

	server := mcp.NewServer(&mcp.Implementation{Name: "mcphub", Version: version}, nil)

	server.AddTool(&mcp.Tool{
		Name:        "list_mcps",
		Description: "List marketplace listings, newest first",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection": collectionSchema,
				"status": map[string]any{
					"type": "string",
					"enum": []string{"pending", "approved", "rejected"},
				},
				"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": maxListLimit},
			},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args listArgs
		if err := decodeArgs(req, &args); err != nil {
			return toolError(err), nil
		}
		collection, err := parseCollection(args.Collection)
		if err != nil {
			return toolError(err), nil
		}
		params := db.ListListingsParams{Limit: clampLimit(args.Limit)}
		if args.Status != "" {
			if params.Status, err = db.ParseStatus(args.Status); err != nil {
				return toolError(err), nil
			}
		}

		rows, err := store.ListListings(ctx, collection, params)
		if err != nil {
			logger.ErrorContext(ctx, "list_mcps failed", "error", err)
			return toolError(errors.New("failed to list listings")), nil
		}
		out := make([]listing, len(rows))
		for i, l := range rows {
			out[i] = toListing(l)
		}
		return jsonResult(map[string]any{"listings": out, "count": len(out)})
	})

	server.AddTool(&mcp.Tool{
		Name:        "get_mcp",
		Description: "Get a single marketplace listing by id",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection": collectionSchema,
				"id":         map[string]any{"type": "string"},
			},
			"required": []string{"id"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args getArgs
		if err := decodeArgs(req, &args); err != nil {
			return toolError(err), nil
		}
		if args.ID == "" {
			return toolError(errors.New("id is required")), nil
		}
		collection, err := parseCollection(args.Collection)
		if err != nil {
			return toolError(err), nil
		}

		l, err := store.GetListing(ctx, collection, args.ID)
		if errors.Is(err, db.ErrListingNotFound) {
			return toolError(fmt.Errorf("listing %s not found", args.ID)), nil
		}
		if err != nil {
			logger.ErrorContext(ctx, "get_mcp failed", "id", args.ID, "error", err)
			return toolError(errors.New("failed to get listing")), nil
		}
		return jsonResult(toListing(l))
	})

	server.AddTool(&mcp.Tool{
		Name:        "search_mcps",
		Description: "Search approved listings by keyword; mode pro re-ranks by relevance",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection": collectionSchema,
				"query":      map[string]any{"type": "string"},
				"mode": map[string]any{
					"type": "string",
					"enum": []string{"basic", "pro"},
				},
			},
			"required": []string{"query"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args searchArgs
		if err := decodeArgs(req, &args); err != nil {
			return toolError(err), nil
		}
		collection, err := parseCollection(args.Collection)
		if err != nil {
			return toolError(err), nil
		}

		rows, err := store.ListListings(ctx, collection, db.ListListingsParams{Status: db.StatusApproved})
		if err != nil {
			logger.ErrorContext(ctx, "search_mcps failed", "error", err)
			return toolError(errors.New("failed to load listings")), nil
		}
		resp := ranker.Search(ctx, db.SearchItems(rows), args.Query, search.ParseMode(args.Mode) == search.ModePro)
		return jsonResult(resp)
	})

	return server
}

func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func parseCollection(s string) (db.Collection, error) {
	if s == "" {
		return db.CollectionMCPs, nil
	}
	return db.ParseCollection(s)
}

func clampLimit(limit int32) int32 {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
