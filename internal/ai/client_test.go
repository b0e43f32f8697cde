package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	return NewClient(Config{
		Endpoint:     url,
		APIKey:       "test-key",
		Deployment:   "gpt-4o",
		MaxRetries:   2,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
		Timeout:      2 * time.Second,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func completion(content, finish string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": finish},
		},
		"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 5},
	}
}

func TestChat_SendsAzureRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))
		assert.Equal(t, "test-key", r.Header.Get("api-key"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Messages, 2)
		assert.Equal(t, 400, body.MaxTokens)

		writeJSON(w, http.StatusOK, completion("  Yo, what's good?  ", "stop"))
	}))
	defer srv.Close()

	c, err := testClient(srv.URL).Chat(context.Background(), []Message{System("sys"), User("hey")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Yo, what's good?", c.Content)
	assert.Equal(t, 12, c.PromptTokens)
	assert.Equal(t, 5, c.CompletionTokens)
}

func TestChat_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error": map[string]string{"code": "429", "message": "slow down"},
			})
			return
		}
		writeJSON(w, http.StatusOK, completion("ok", "stop"))
	}))
	defer srv.Close()

	c, err := testClient(srv.URL).Chat(context.Background(), []Message{User("hi")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestChat_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]string{"code": "401", "message": "bad key"},
		})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(), []Message{User("hi")}, Options{})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	assert.Equal(t, "bad key", upstream.Message)
}

func TestChat_ContentFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, completion("", "content_filter"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(), []Message{User("hi")}, Options{})
	assert.ErrorIs(t, err, ErrContentFiltered)

	filtered := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]string{"code": "content_filter", "message": "prompt filtered"},
		})
	}))
	defer filtered.Close()

	_, err = testClient(filtered.URL).Chat(context.Background(), []Message{User("hi")}, Options{})
	assert.ErrorIs(t, err, ErrContentFiltered)
}

func TestChat_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(), []Message{User("hi")}, Options{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestChat_Disabled(t *testing.T) {
	c := NewClient(Config{})
	assert.False(t, c.Enabled())

	_, err := c.Chat(context.Background(), []Message{User("hi")}, Options{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestChat_OptionsOverrideDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 900, body["max_tokens"])
		assert.EqualValues(t, 0.2, body["temperature"])
		format := body["response_format"].(map[string]interface{})
		assert.Equal(t, "json_schema", format["type"])
		writeJSON(w, http.StatusOK, completion("{}", "stop"))
	}))
	defer srv.Close()

	temp := 0.2
	_, err := testClient(srv.URL).Chat(context.Background(), []Message{User("hi")}, Options{
		MaxTokens:      900,
		Temperature:    &temp,
		ResponseFormat: MissionResponseFormat(),
	})
	require.NoError(t, err)
}
