// Package client is a Go client for the MCP Hub HTTP API.
package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/mcphub/service/wallet"
	"github.com/ethereum/go-ethereum/crypto"
)

// Collection paths accepted by the API.
const (
	CollectionMCPList = "mcp-list"
	CollectionMCPs    = "mcps"
)

// WalletHeader identifies the caller's wallet on admin requests.
const WalletHeader = wallet.AddressHeader

// Listing is a marketplace listing as returned by the server.
type Listing struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	APIEndpoints []string  `json:"apiEndpoints"`
	Tags         []string  `json:"tags"`
	Category     string    `json:"category,omitempty"`
	Owner        string    `json:"owner,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateListingRequest is the body of a listing submission.
type CreateListingRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	APIEndpoints []string `json:"apiEndpoints"`
	Tags         []string `json:"tags,omitempty"`
	Category     string   `json:"category,omitempty"`
	Owner        string   `json:"owner,omitempty"`
}

// ListOptions filters a listing query. Zero values use server defaults.
type ListOptions struct {
	Status string
	Limit  int
	Offset int
}

// StatusResult is the outcome of a review decision. When Pending is true
// the decision was handed to the review workflow and Listing is nil.
type StatusResult struct {
	Listing    *Listing
	Pending    bool
	WorkflowID string
}

// SearchResult is a single search hit.
type SearchResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Score       *float64 `json:"score,omitempty"`
}

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	Query    string         `json:"query"`
	Mode     string         `json:"mode"`
	Results  []SearchResult `json:"results"`
	Count    int            `json:"count"`
	Degraded bool           `json:"degraded,omitempty"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: %s", e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the HTTP client for the MCP Hub service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	wallet     string
	key        *ecdsa.PrivateKey
	logger     *slog.Logger
}

// NewClient creates a new marketplace client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithWallet returns a copy of the client that sends the given wallet
// address on every request. Admin endpoints require it.
func (c *Client) WithWallet(address string) *Client {
	cp := *c
	cp.wallet = address
	return &cp
}

// WithAdminKey returns a copy of the client that signs every request with
// key and sends the key's address as its wallet. Admin endpoints only accept
// signed requests.
func (c *Client) WithAdminKey(key *ecdsa.PrivateKey) *Client {
	cp := *c
	cp.key = key
	cp.wallet = crypto.PubkeyToAddress(key.PublicKey).Hex()
	return &cp
}

// CreateListing submits a listing to a collection.
func (c *Client) CreateListing(ctx context.Context, collection string, listing CreateListingRequest) (*Listing, error) {
	var resp struct {
		ID      string  `json:"id"`
		Listing Listing `json:"listing"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/"+collection, listing, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("listing created", "collection", collection, "id", resp.ID)
	return &resp.Listing, nil
}

// ListListings returns a collection's listings, newest first.
func (c *Client) ListListings(ctx context.Context, collection string, opts ListOptions) ([]*Listing, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/v1/" + collection
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Listings []*Listing `json:"listings"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Listings, nil
}

// GetListing fetches a single listing.
func (c *Client) GetListing(ctx context.Context, collection, id string) (*Listing, error) {
	var l Listing
	if err := c.do(ctx, http.MethodGet, "/api/v1/"+collection+"/"+url.PathEscape(id), nil, http.StatusOK, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateStatus approves or rejects a listing. The client must carry the
// admin wallet (see WithWallet).
func (c *Client) UpdateStatus(ctx context.Context, collection, id, status, reviewer string) (*StatusResult, error) {
	body := map[string]string{"status": status, "reviewer": reviewer}
	path := "/api/v1/" + collection + "/" + url.PathEscape(id) + "/status"

	resp, err := c.send(ctx, http.MethodPatch, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var l Listing
		if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &StatusResult{Listing: &l}, nil
	case http.StatusAccepted:
		var accepted struct {
			WorkflowID string `json:"workflowId"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &StatusResult{Pending: true, WorkflowID: accepted.WorkflowID}, nil
	default:
		return nil, c.parseErrorResponse(resp)
	}
}

// DeleteListing removes a listing. The client must carry the admin wallet.
func (c *Client) DeleteListing(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/"+collection+"/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// Search queries approved listings. mode is "basic" or "pro".
func (c *Client) Search(ctx context.Context, collection, query, mode string) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	if mode != "" {
		q.Set("mode", mode)
	}
	if collection != "" {
		q.Set("collection", collection)
	}

	var resp SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/search?"+q.Encode(), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/version", nil, http.StatusOK, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// do sends a request and decodes a response with the expected status into out.
func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var (
		reader  io.Reader
		payload []byte
	)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = b
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.wallet != "" {
		req.Header.Set(WalletHeader, c.wallet)
	}
	if c.key != nil {
		signed := wallet.AdminRequest{
			Method:    method,
			Path:      req.URL.EscapedPath(),
			Body:      payload,
			Timestamp: time.Now().Unix(),
		}
		sig, err := wallet.SignAdminRequest(c.key, signed)
		if err != nil {
			return nil, err
		}
		req.Header.Set(wallet.SignatureHeader, sig)
		req.Header.Set(wallet.TimestampHeader, strconv.FormatInt(signed.Timestamp, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
