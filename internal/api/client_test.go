package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawldesk/internal/core"
)

func newTestClient(url string) *Client {
	c := New(DefaultConfig(url))
	c.minInterval = 0 // no throttling in tests
	return c
}

func TestSmartQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/analysis/smart-query", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Zeige alle Quellen", req["question"])
		assert.Equal(t, false, req["allow_write"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":                2,
			"query_interpretation": "Alle Quellen",
			"items": []map[string]any{
				{"id": "1", "type": "source", "name": "RSS A"},
				{"id": "2", "type": "source", "name": "RSS B"},
			},
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).SmartQuery(t.Context(), "Zeige alle Quellen")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, core.GroupingFlat, res.Grouping)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "RSS A", res.Items[0].Name)
}

func TestSmartWritePreviewAndCommitFlags(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analysis/smart-write", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		bodies = append(bodies, req)

		if req["preview_only"] == true {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"operation_label": "create_entity",
				"description":     "Create person Max",
				"details":         []string{"type: person"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "created",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	env, err := c.SmartWritePreview(t.Context(), "Erstelle Person Max")
	require.NoError(t, err)
	assert.Equal(t, "create_entity", env.OperationLabel)

	res, err := c.SmartWriteCommit(t.Context(), "Erstelle Person Max")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, bodies, 2)
	assert.Equal(t, true, bodies[0]["preview_only"])
	assert.Nil(t, bodies[0]["confirmed"])
	assert.Equal(t, false, bodies[1]["preview_only"])
	assert.Equal(t, true, bodies[1]["confirmed"])
}

func TestErrorEnvelopeDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"ambiguous_command","message":"Mehrdeutige Anweisung"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SmartQuery(t.Context(), "???")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "ambiguous_command", apiErr.Code)
	assert.Contains(t, apiErr.Message, "Mehrdeutige")
}

func TestUploadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/attachments", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "shot.png", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte{1, 2, 3}, data)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "att-1",
			"filename":     "shot.png",
			"content_type": "image/png",
			"size_bytes":   3,
		})
	}))
	defer srv.Close()

	att, err := newTestClient(srv.URL).UploadAttachment(t.Context(), "shot.png", "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "att-1", att.ID)
	assert.Equal(t, int64(3), att.SizeBytes)
}

func TestPlanStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analysis/plan/stream", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req["messages"], 1)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`data: {"delta":"Gerne, "}`,
			``,
			`data: not-json`, // malformed chunks are skipped
			`data: {"delta":"los geht's.","done":false}`,
			`data: {"done":true,"generated_prompt":"Zeige alle Beschwerden"}`,
			`data: [DONE]`,
		} {
			_, _ = io.WriteString(w, line+"\n")
			flusher.Flush()
		}
	}))
	defer srv.Close()

	turns := []core.PlanTurn{{Role: core.PlanRoleUser, Text: "Hilf mir"}}
	chunks, err := newTestClient(srv.URL).PlanStream(t.Context(), turns)
	require.NoError(t, err)

	var deltas string
	var prompt string
	for chunk := range chunks {
		require.NoError(t, chunk.Err)
		deltas += chunk.Delta
		if chunk.Done {
			prompt = chunk.GeneratedPrompt
		}
	}
	assert.Equal(t, "Gerne, los geht's.", deltas)
	assert.Equal(t, "Zeige alle Beschwerden", prompt)
}

func TestExamplePromptsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	examples, err := newTestClient(srv.URL).ExamplePrompts(t.Context())
	require.NoError(t, err, "endpoint failure must fall back to the embedded bundle")
	require.NotEmpty(t, examples)

	modes := map[core.Mode]bool{}
	for _, ex := range examples {
		modes[ex.Mode] = true
	}
	assert.True(t, modes[core.ModeRead] && modes[core.ModeWrite] && modes[core.ModePlan],
		"fallback bundle must cover all three modes")
}

func TestExamplePromptsCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"examples": []map[string]string{{"mode": "read", "text": "Zeige alles"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		examples, err := c.ExamplePrompts(t.Context())
		require.NoError(t, err)
		require.Len(t, examples, 1)
	}
	assert.Equal(t, 1, calls, "examples should be served from cache")
}

func TestRunningCrawlCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crawl-jobs/running-count", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 4})
	}))
	defer srv.Close()

	count, err := newTestClient(srv.URL).RunningCrawlCount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestGroupedReadResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":    2,
			"grouping": "by_event",
			"groups": []map[string]any{
				{
					"event": "Stadtratssitzung",
					"items": []map[string]any{
						{"id": "1", "type": "complaint", "name": "Lärm"},
						{"id": "2", "type": "complaint", "name": "Verkehr"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).SmartQuery(t.Context(), "Beschwerden pro Sitzung")
	require.NoError(t, err)
	assert.Equal(t, core.GroupingByEvent, res.Grouping)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Stadtratssitzung", res.Groups[0].Event)
	assert.Len(t, res.Groups[0].Items, 2)
}
