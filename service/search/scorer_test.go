package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferenceScorer_Score(t *testing.T) {
	var got similarityRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[0.83]`))
	}))
	defer srv.Close()

	s := NewInferenceScorer(srv.URL, "hf_test", srv.Client(), nil, nil)
	score, err := s.Score(context.Background(), "weather", catalog[0])
	require.NoError(t, err)
	assert.InDelta(t, 0.83, score, 1e-9)

	assert.Equal(t, "weather", got.Inputs.SourceSentence)
	require.Len(t, got.Inputs.Sentences, 1)
	assert.Equal(t, "Weather MCP. Forecasts and alerts. weather, api", got.Inputs.Sentences[0])
}

func TestInferenceScorer_Errors(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		s := NewInferenceScorer("http://127.0.0.1:1", "", nil, nil, nil)
		_, err := s.Score(context.Background(), "q", catalog[0])
		assert.ErrorIs(t, err, ErrInferenceUnavailable)
	})

	t.Run("upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		s := NewInferenceScorer(srv.URL, "k", srv.Client(), nil, nil)
		_, err := s.Score(context.Background(), "q", catalog[0])
		assert.ErrorIs(t, err, ErrInferenceUnavailable)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("empty scores", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		s := NewInferenceScorer(srv.URL, "k", srv.Client(), nil, nil)
		_, err := s.Score(context.Background(), "q", catalog[0])
		assert.Error(t, err)
	})
}
