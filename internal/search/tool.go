package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/gopherchat/agent/internal/tools"
)

// NewTool wraps the manager as an agent tool. The tool input is the raw
// query string; results come back as readable text for the model.
func NewTool(mgr *Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "web_search",
		Description: "Search the web for current information. Input is the search query.",
		Handler: func(ctx context.Context, input string) (string, error) {
			query := strings.TrimSpace(input)
			if query == "" {
				return "", fmt.Errorf("web_search: query is required")
			}
			results, err := mgr.Search(ctx, query, Options{})
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return "No results found.", nil
			}
			return FormatResults(results), nil
		},
	}
}

// FormatResults renders results as numbered text blocks.
func FormatResults(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			b.WriteString(r.Snippet)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
