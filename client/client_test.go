package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/brojonat/mcphub/service/wallet"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListing_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/mcps", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Weather", body["title"])
		assert.Equal(t, []any{"/a"}, body["apiEndpoints"])
		assert.NotContains(t, body, "tags")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "abc",
			"listing": map[string]any{"id": "abc", "title": "Weather", "status": "pending"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	l, err := c.CreateListing(context.Background(), CollectionMCPs, CreateListingRequest{
		Title:        "Weather",
		Description:  "forecasts",
		Price:        1,
		APIEndpoints: []string{"/a"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", l.ID)
	assert.Equal(t, "pending", l.Status)
}

func TestCreateListing_ValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing required fields: title"})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	_, err := c.CreateListing(context.Background(), CollectionMCPs, CreateListingRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required fields")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestListListings(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/mcp-list", r.URL.Path)
		assert.Equal(t, "approved", r.URL.Query().Get("status"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))

		json.NewEncoder(w).Encode(map[string]any{
			"listings": []map[string]any{
				{"id": "2", "title": "B", "createdAt": created},
				{"id": "1", "title": "A", "createdAt": created.Add(-time.Hour)},
			},
			"count": 2,
		})
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", nil, nil)
	listings, err := c.ListListings(context.Background(), CollectionMCPList, ListOptions{Status: "approved", Limit: 10})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "2", listings[0].ID)
	assert.True(t, listings[0].CreatedAt.Equal(created))
}

func TestGetListing_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/mcps/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "listing not found"})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	_, err := c.GetListing(context.Background(), CollectionMCPs, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "listing not found")
}

func TestUpdateStatus(t *testing.T) {
	const admin = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	t.Run("applied", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/api/v1/mcps/abc/status", r.URL.Path)
			assert.Equal(t, admin, r.Header.Get(WalletHeader))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "approved", body["status"])
			assert.Equal(t, "alice", body["reviewer"])

			json.NewEncoder(w).Encode(map[string]any{"id": "abc", "status": "approved"})
		}))
		defer server.Close()

		c := NewClient(server.URL, nil, nil).WithWallet(admin)
		res, err := c.UpdateStatus(context.Background(), CollectionMCPs, "abc", "approved", "alice")
		require.NoError(t, err)
		assert.False(t, res.Pending)
		require.NotNil(t, res.Listing)
		assert.Equal(t, "approved", res.Listing.Status)
	})

	t.Run("routed to review", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"id": "abc", "status": "rejected", "workflowId": "review-mcps-abc"})
		}))
		defer server.Close()

		c := NewClient(server.URL, nil, nil).WithWallet(admin)
		res, err := c.UpdateStatus(context.Background(), CollectionMCPs, "abc", "rejected", "")
		require.NoError(t, err)
		assert.True(t, res.Pending)
		assert.Nil(t, res.Listing)
		assert.Equal(t, "review-mcps-abc", res.WorkflowID)
	})

	t.Run("forbidden", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get(WalletHeader))
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "admin wallet required"})
		}))
		defer server.Close()

		c := NewClient(server.URL, nil, nil)
		_, err := c.UpdateStatus(context.Background(), CollectionMCPs, "abc", "approved", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin wallet required")
	})
}

func TestWithWallet_DoesNotMutateOriginal(t *testing.T) {
	c := NewClient("http://example.invalid", nil, nil)
	admin := c.WithWallet("0xabc")
	assert.Empty(t, c.wallet)
	assert.Equal(t, "0xabc", admin.wallet)
}

func TestWithAdminKey_SignsRequests(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := crypto.PubkeyToAddress(key.PublicKey).Hex()

	var verified []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		ts, err := strconv.ParseInt(r.Header.Get(wallet.TimestampHeader), 10, 64)
		require.NoError(t, err)

		err = wallet.VerifyAdminRequest(wallet.AdminRequest{
			Method:    r.Method,
			Path:      r.URL.EscapedPath(),
			Body:      body,
			Timestamp: ts,
		}, r.Header.Get(WalletHeader), r.Header.Get(wallet.SignatureHeader), admin, time.Now())
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		verified = append(verified, r.Method)

		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "abc", "status": "approved"})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil).WithAdminKey(key)
	assert.Equal(t, admin, c.wallet)

	_, err = c.UpdateStatus(context.Background(), CollectionMCPs, "abc", "approved", "alice")
	require.NoError(t, err)
	require.NoError(t, c.DeleteListing(context.Background(), CollectionMCPs, "abc"))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, verified)

	// An address alone is not enough.
	_, err = NewClient(server.URL, nil, nil).WithWallet(admin).UpdateStatus(context.Background(), CollectionMCPs, "abc", "approved", "")
	require.Error(t, err)
}

func TestDeleteListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/mcps/abc", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil).WithWallet("0xadmin")
	assert.NoError(t, c.DeleteListing(context.Background(), CollectionMCPs, "abc"))
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "weather maps", r.URL.Query().Get("q"))
		assert.Equal(t, "pro", r.URL.Query().Get("mode"))

		json.NewEncoder(w).Encode(map[string]any{
			"query":   "weather maps",
			"mode":    "pro",
			"count":   1,
			"results": []map[string]any{{"id": "1", "title": "Weather", "score": 0.9}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	resp, err := c.Search(context.Background(), "", "weather maps", "pro")
	require.NoError(t, err)
	assert.Equal(t, "pro", resp.Mode)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Results[0].Score)
	assert.InDelta(t, 0.9, *resp.Results[0].Score, 1e-9)
}

func TestHealthAndVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Write([]byte("OK"))
		case "/version":
			json.NewEncoder(w).Encode(map[string]string{"version": "v1.2.3"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	require.NoError(t, c.Health(context.Background()))
	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)
}

func TestParseErrorResponse_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable\n"))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	err := c.Health(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}
