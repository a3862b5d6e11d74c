package assistant_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"feedctx/internal/assistant"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedResponse(text string) string {
	return `{
		"id": "resp_1",
		"object": "response",
		"created_at": 1760000000,
		"status": "completed",
		"model": "gpt-5-mini",
		"output": [{
			"type": "message",
			"id": "msg_1",
			"status": "completed",
			"role": "assistant",
			"content": [{"type": "output_text", "text": ` + jsonString(text) + `, "annotations": []}]
		}]
	}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newServer(t *testing.T, bodies ...string) (*httptest.Server, *[]map[string]any) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(raw, &req)

		mu.Lock()
		requests = append(requests, req)
		body := bodies[min(len(requests), len(bodies))-1]
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv, &requests
}

func TestRespond(t *testing.T) {
	srv, requests := newServer(t, completedResponse("Two new releases today."))

	r := assistant.NewOpenAIResponder("test-key", "gpt-5-mini",
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	answer, err := r.Respond(context.Background(), "Summarize @rss\n\n=== Feed context: 1 feeds, 2 recent articles ===")
	require.NoError(t, err)
	assert.Equal(t, "Two new releases today.", answer)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "gpt-5-mini", req["model"])
	assert.True(t, strings.HasPrefix(req["input"].(string), "Summarize @rss"))
	assert.Contains(t, req["instructions"], "Feed context")
}

func TestRespondRetriesIncompleteOutput(t *testing.T) {
	incomplete := `{
		"id": "resp_0",
		"object": "response",
		"created_at": 1760000000,
		"status": "incomplete",
		"incomplete_details": {"reason": "max_output_tokens"},
		"model": "gpt-5-mini",
		"output": []
	}`
	srv, requests := newServer(t, incomplete, completedResponse("Done."))

	r := assistant.NewOpenAIResponder("test-key", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	answer, err := r.Respond(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Done.", answer)

	require.Len(t, *requests, 2)
	assert.EqualValues(t, 1024, (*requests)[0]["max_output_tokens"])
	assert.EqualValues(t, 2048, (*requests)[1]["max_output_tokens"])
	assert.Equal(t, assistant.DefaultModel, (*requests)[0]["model"])
}

func TestRespondRejectsEmptyMessage(t *testing.T) {
	r := assistant.NewOpenAIResponder("test-key", "")

	_, err := r.Respond(context.Background(), "  ")
	require.Error(t, err)
}
