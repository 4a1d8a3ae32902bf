package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

const (
	defaultSearchBaseURL = "https://api.duckduckgo.com"

	defaultSearchResults = 5
	maxSearchResults     = 25
)

// WebSearchTool answers web queries through the DuckDuckGo Instant Answer
// API. No API key is required.
type WebSearchTool struct {
	baseURL string
	client  *http.Client
}

// WebSearchOption configures a WebSearchTool.
type WebSearchOption func(*WebSearchTool)

// WithSearchBaseURL overrides the search endpoint. Used in tests to point
// the tool at a local fixture server.
func WithSearchBaseURL(baseURL string) WebSearchOption {
	return func(t *WebSearchTool) {
		t.baseURL = baseURL
	}
}

// WithSearchHTTPClient overrides the HTTP client.
func WithSearchHTTPClient(client *http.Client) WebSearchOption {
	return func(t *WebSearchTool) {
		t.client = client
	}
}

// NewWebSearchTool creates a web search tool.
func NewWebSearchTool(opts ...WebSearchOption) *WebSearchTool {
	t := &WebSearchTool{
		baseURL: defaultSearchBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the tool identifier.
func (t *WebSearchTool) Name() string {
	return "web_search"
}

// Description returns what the tool does, phrased for the model.
func (t *WebSearchTool) Description() string {
	return "Search the web for a query and return a list of result titles, URLs, and snippets."
}

// Schema returns the JSON Schema for the tool's parameters.
func (t *WebSearchTool) Schema() scholarkit.Schema {
	return scholarkit.Schema{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum number of results to return (1-%d, default %d)", maxSearchResults, defaultSearchResults),
			},
		},
		"required": []string{"query"},
	}
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// instantAnswer mirrors the fields of the DuckDuckGo Instant Answer
// response this tool consumes.
type instantAnswer struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
		Topics   []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"Topics"`
	} `json:"RelatedTopics"`
}

// Execute performs the search.
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*scholarkit.ToolResult, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return scholarkit.NewToolError("missing required parameter \"query\""), nil
	}

	maxResults := defaultSearchResults
	if raw, ok := params["max_results"]; ok {
		n, err := numberParam(params, "max_results")
		if err != nil {
			return scholarkit.NewToolError(err.Error()), nil
		}
		if n != math.Trunc(n) {
			return scholarkit.NewToolError(fmt.Sprintf("max_results must be a whole number, got %v", raw)), nil
		}
		maxResults = int(n)
		if maxResults < 1 || maxResults > maxSearchResults {
			return scholarkit.NewToolError(fmt.Sprintf("max_results must be between 1 and %d, got %v", maxSearchResults, raw)), nil
		}
	}

	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		t.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return scholarkit.NewToolError(fmt.Sprintf("search service returned status %d", resp.StatusCode)), nil
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := flattenInstantAnswer(&answer, maxResults)

	return scholarkit.NewToolResult(results).
		WithMetadata("query", query).
		WithMetadata("result_count", len(results)), nil
}

// flattenInstantAnswer turns the nested instant-answer payload into a flat
// result list, abstract first, capped at maxResults.
func flattenInstantAnswer(answer *instantAnswer, maxResults int) []SearchResult {
	results := make([]SearchResult, 0, maxResults)

	if answer.AbstractText != "" {
		results = append(results, SearchResult{
			Title:   answer.Heading,
			URL:     answer.AbstractURL,
			Snippet: answer.AbstractText,
		})
	}

	for _, topic := range answer.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if topic.Text != "" && topic.FirstURL != "" {
			results = append(results, SearchResult{
				Title:   topic.Text,
				URL:     topic.FirstURL,
				Snippet: topic.Text,
			})
			continue
		}
		// Disambiguation groups nest their hits one level down.
		for _, sub := range topic.Topics {
			if len(results) >= maxResults {
				break
			}
			if sub.Text != "" && sub.FirstURL != "" {
				results = append(results, SearchResult{
					Title:   sub.Text,
					URL:     sub.FirstURL,
					Snippet: sub.Text,
				})
			}
		}
	}

	return results
}

var _ scholarkit.Tool = (*WebSearchTool)(nil)
