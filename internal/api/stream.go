package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

type planStreamRequest struct {
	Messages []planMessagePayload `json:"messages"`
}

type planMessagePayload struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// planChunkPayload is one SSE data line of the plan stream.
type planChunkPayload struct {
	Delta           string `json:"delta"`
	Done            bool   `json:"done"`
	GeneratedPrompt string `json:"generated_prompt"`
}

// PlanStream opens the streaming plan-mode endpoint and returns a channel of
// chunks. The channel is closed after the completion chunk or an error
// chunk; cancelling ctx tears the stream down.
func (c *Client) PlanStream(ctx context.Context, turns []core.PlanTurn) (<-chan core.PlanChunk, error) {
	req := planStreamRequest{}
	for _, t := range turns {
		req.Messages = append(req.Messages, planMessagePayload{Role: string(t.Role), Text: t.Text})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analysis/plan/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build plan request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// The shared client has a request timeout tuned for unary calls; a
	// stream lives until the dialogue turn completes, so rely on ctx alone.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("plan stream failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		buf := make([]byte, 4096)
		n, _ := resp.Body.Read(buf)
		return nil, decodeError(resp.StatusCode, buf[:n])
	}

	out := make(chan core.PlanChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				if data == "[DONE]" {
					return
				}
				continue
			}

			var chunk planChunkPayload
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				logging.PlanDebug("skipping malformed stream chunk: %v", err)
				continue
			}

			select {
			case out <- core.PlanChunk{Delta: chunk.Delta, Done: chunk.Done, GeneratedPrompt: chunk.GeneratedPrompt}:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- core.PlanChunk{Err: fmt.Errorf("plan stream interrupted: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
