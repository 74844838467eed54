package api

import (
	"context"
	_ "embed"
	"net/http"

	"gopkg.in/yaml.v3"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

//go:embed examples.yaml
var fallbackExamplesYAML []byte

const examplesCacheKey = "smart-query-examples"

type examplesPayload struct {
	Examples []core.ExamplePrompt `json:"examples"`
}

type fallbackBundle struct {
	Examples []core.ExamplePrompt `yaml:"examples"`
}

// ExamplePrompts returns per-mode example prompts used to seed suggestion
// cards. Responses are cached with a TTL; when the endpoint is unreachable
// the embedded fallback bundle is served so the welcome screen is never
// empty.
func (c *Client) ExamplePrompts(ctx context.Context) ([]core.ExamplePrompt, error) {
	if cached, ok := c.examples.Get(examplesCacheKey); ok {
		return cached.([]core.ExamplePrompt), nil
	}

	var payload examplesPayload
	err := c.doJSON(ctx, http.MethodGet, "/analysis/smart-query/examples", nil, &payload)
	if err == nil && len(payload.Examples) > 0 {
		c.examples.SetDefault(examplesCacheKey, payload.Examples)
		return payload.Examples, nil
	}
	if err != nil {
		logging.APIDebug("examples endpoint unavailable, using fallback bundle: %v", err)
	}

	fallback, ferr := FallbackExamples()
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return nil, ferr
	}
	return fallback, nil
}

// FallbackExamples parses the embedded example bundle.
func FallbackExamples() ([]core.ExamplePrompt, error) {
	var bundle fallbackBundle
	if err := yaml.Unmarshal(fallbackExamplesYAML, &bundle); err != nil {
		return nil, err
	}
	return bundle.Examples, nil
}
