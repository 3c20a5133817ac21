package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nugget/jarvis/internal/httpkit"
)

// SearchClient builds search deep links and queries the DuckDuckGo
// instant answer API.
type SearchClient struct {
	linkBase   string
	apiBase    string
	httpClient *http.Client
}

// NewSearchClient creates a search client. Empty bases use DuckDuckGo.
func NewSearchClient(linkBase, apiBase string, httpClient *http.Client) *SearchClient {
	if linkBase == "" {
		linkBase = "https://duckduckgo.com/"
	}
	if apiBase == "" {
		apiBase = "https://api.duckduckgo.com/"
	}
	if httpClient == nil {
		httpClient = httpkit.NewClient()
	}
	return &SearchClient{linkBase: linkBase, apiBase: apiBase, httpClient: httpClient}
}

// Link returns the deep link for query.
func (c *SearchClient) Link(query string) string {
	return c.linkBase + "?q=" + url.QueryEscape(query)
}

// InstantAnswer is the subset of the instant answer response we expose.
type InstantAnswer struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	Answer        string         `json:"Answer"`
	RelatedTopics []RelatedTopic `json:"RelatedTopics"`
}

// RelatedTopic is one related result.
type RelatedTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

// Instant queries the instant answer API for query.
func (c *SearchClient) Instant(ctx context.Context, query string) (*InstantAnswer, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")

	body, err := httpkit.Get(ctx, c.httpClient, c.apiBase+"?"+q.Encode(), "application/json", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	var ia InstantAnswer
	if err := json.Unmarshal(body, &ia); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	return &ia, nil
}

// SearchTool returns the search tool. It performs no retrieval: the
// reply acknowledges the query and carries a deep link.
func SearchTool(c *SearchClient) *Tool {
	return &Tool{
		Name:        "search",
		Description: "Acknowledge a web search and link to the results.",
		Apology:     "Sorry, I couldn't start that search.",
		Handler: func(_ context.Context, query string) (string, error) {
			query = strings.TrimSpace(query)
			if query == "" {
				return "", fmt.Errorf("empty query")
			}
			return fmt.Sprintf("I'm searching the web for %q. You can see the results here: %s", query, c.Link(query)), nil
		},
	}
}
