// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholar-nlu/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*OllamaClient, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c := NewOllamaClient(types.LLMConfig{BaseURL: ts.URL, Model: "test-model"}, nil)
	return c, ts
}

func TestIsAvailable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	assert.True(t, c.IsAvailable(context.Background()))
}

func TestIsAvailable_ServerDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	ts.Close()
	c := NewOllamaClient(types.LLMConfig{BaseURL: ts.URL}, nil)

	assert.False(t, c.IsAvailable(context.Background()))
}

func TestChat(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(chatResponse{
			Message: ChatMessage{Role: "assistant", Content: `{"intent": "search"}`},
			Done:    true,
		})
	}))

	reply, err := c.Chat(context.Background(), []ChatMessage{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "найди статьи"},
	}, 0.1)
	require.NoError(t, err)
	assert.Equal(t, `{"intent": "search"}`, reply)
}

func TestChat_ErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))

	_, err := c.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestChat_SendsBearerToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(chatResponse{Message: ChatMessage{Content: "ok"}, Done: true})
	}))
	defer ts.Close()

	c := NewOllamaClient(types.LLMConfig{BaseURL: ts.URL, APIToken: "sekret"}, nil)
	_, err := c.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0)
	require.NoError(t, err)
}
