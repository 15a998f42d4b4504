package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Bing implements the Provider interface for the Bing Web Search API v7.
type Bing struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewBing creates a Bing search provider. An empty endpoint uses the
// public API host.
func NewBing(apiKey, endpoint string) *Bing {
	if endpoint == "" {
		endpoint = "https://api.bing.microsoft.com/v7.0/search"
	}
	return &Bing{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (b *Bing) Name() string { return "bing" }

// bingResponse is the JSON response from the web search endpoint.
type bingResponse struct {
	WebPages struct {
		Value []bingResult `json:"value"`
	} `json:"webPages"`
}

type bingResult struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (b *Bing) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	count := opts.Count
	if count == 0 {
		count = 5
	}

	params := url.Values{
		"q":     {query},
		"count": {strconv.Itoa(count)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("bing: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bing: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var br bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("bing: decode response: %w", err)
	}

	results := make([]Result, 0, len(br.WebPages.Value))
	for _, r := range br.WebPages.Value {
		results = append(results, Result{
			Title:   r.Name,
			URL:     r.URL,
			Snippet: r.Snippet,
		})
	}

	return results, nil
}
