package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

const (
	defaultArxivBaseURL = "http://export.arxiv.org/api/query"

	defaultArxivResults = 5
	maxArxivResults     = 50
)

// ArxivSearchTool searches arXiv.org for papers through its public export
// API. Responses arrive as Atom XML.
type ArxivSearchTool struct {
	baseURL string
	client  *http.Client
}

// ArxivOption configures an ArxivSearchTool.
type ArxivOption func(*ArxivSearchTool)

// WithArxivBaseURL overrides the arXiv endpoint. Used in tests to point the
// tool at a local fixture server.
func WithArxivBaseURL(baseURL string) ArxivOption {
	return func(t *ArxivSearchTool) {
		t.baseURL = baseURL
	}
}

// WithArxivHTTPClient overrides the HTTP client.
func WithArxivHTTPClient(client *http.Client) ArxivOption {
	return func(t *ArxivSearchTool) {
		t.client = client
	}
}

// NewArxivSearchTool creates an arXiv search tool.
func NewArxivSearchTool(opts ...ArxivOption) *ArxivSearchTool {
	t := &ArxivSearchTool{
		baseURL: defaultArxivBaseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the tool identifier.
func (t *ArxivSearchTool) Name() string {
	return "arxiv_search"
}

// Description returns what the tool does, phrased for the model.
func (t *ArxivSearchTool) Description() string {
	return "Search arXiv.org for research papers and return titles, authors, abstracts, and links."
}

// Schema returns the JSON Schema for the tool's parameters.
func (t *ArxivSearchTool) Schema() scholarkit.Schema {
	return scholarkit.Schema{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search terms, e.g. a topic, author, or paper title",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum number of papers to return (1-%d, default %d)", maxArxivResults, defaultArxivResults),
			},
		},
		"required": []string{"query"},
	}
}

// Paper is one arXiv search hit.
type Paper struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Summary   string   `json:"summary"`
	URL       string   `json:"url"`
	Published string   `json:"published"`
}

// atomFeed mirrors the subset of the arXiv Atom response this tool reads.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	ID        string `xml:"id"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

// Execute performs the search.
func (t *ArxivSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*scholarkit.ToolResult, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return scholarkit.NewToolError("missing required parameter \"query\""), nil
	}

	maxResults := defaultArxivResults
	if raw, ok := params["max_results"]; ok {
		n, err := numberParam(params, "max_results")
		if err != nil {
			return scholarkit.NewToolError(err.Error()), nil
		}
		if n != math.Trunc(n) {
			return scholarkit.NewToolError(fmt.Sprintf("max_results must be a whole number, got %v", raw)), nil
		}
		maxResults = int(n)
		if maxResults < 1 || maxResults > maxArxivResults {
			return scholarkit.NewToolError(fmt.Sprintf("max_results must be between 1 and %d, got %v", maxArxivResults, raw)), nil
		}
	}

	endpoint := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d",
		t.baseURL, url.QueryEscape("all:"+query), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build arxiv request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return scholarkit.NewToolError(fmt.Sprintf("arxiv returned status %d", resp.StatusCode)), nil
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode arxiv response: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper := Paper{
			Title:     collapseWhitespace(entry.Title),
			Summary:   collapseWhitespace(entry.Summary),
			Published: entry.Published,
			URL:       entry.ID,
		}
		for _, author := range entry.Authors {
			paper.Authors = append(paper.Authors, author.Name)
		}
		for _, link := range entry.Links {
			if link.Rel == "alternate" && link.Href != "" {
				paper.URL = link.Href
			}
		}
		papers = append(papers, paper)
	}

	return scholarkit.NewToolResult(papers).
		WithMetadata("query", query).
		WithMetadata("result_count", len(papers)), nil
}

// collapseWhitespace normalizes the newline-wrapped text arXiv returns in
// titles and abstracts.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ scholarkit.Tool = (*ArxivSearchTool)(nil)
