package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetnote-labs/meetnote/errors"
	"github.com/meetnote-labs/meetnote/pkg/config"
)

func testClient(url string) *Client {
	return NewClient(config.LLMConfig{
		BaseURL:    url,
		ChatModel:  "test-chat",
		EmbedModel: "test-embed",
		Timeout:    5 * time.Second,
	})
}

func TestChat_ReturnsAssistantContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-chat", req.Model)
		assert.False(t, req.Stream)
		assert.Empty(t, req.Format)

		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: "hello there"},
			Done:    true,
		})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Chat(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, Options{Temperature: 0.3})

	require.NoError(t, err)
	assert.Equal(t, "hello there", got)
}

func TestChatJSON_SetsJSONFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)

		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: `{"ok":true}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).ChatJSON(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, Options{Temperature: 0.1})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, got)
}

func TestChat_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, Options{})

	require.Error(t, err)
	assert.Equal(t, errors.KindTransient, errors.KindOf(err))
}

func TestChat_EmptyContentIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Done: true})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, Options{})

	require.Error(t, err)
}

func TestEmbed_ReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		assert.Equal(t, "budget review", req.Prompt)

		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	vec, err := testClient(srv.URL).Embed(context.Background(), "budget review")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbed_EmptyVectorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Embed(context.Background(), "anything")
	require.Error(t, err)
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, testClient(srv.URL).Healthy(context.Background()))
}
