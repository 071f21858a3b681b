package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"core/internal/config"
)

// Tool names exposed to the model
const (
	ToolWebSearch = "web_search"
	ToolHTTPGet   = "http_get"
)

// TruncationMarker joins the head and tail portions of an over-long page
const TruncationMarker = "\n\n[... CONTENT TRUNCATED ...]\n\n"

// ToolExecutor executes the auxiliary actions the model may request
// during a match. Both operations are read-only; failures degrade into
// error-carrying results and never cross the executor boundary.
type ToolExecutor struct {
	serper       *config.SerperConfig
	fetch        *config.FetchConfig
	searchClient *http.Client
	fetchClient  *http.Client
}

// NewToolExecutor creates a tool executor with bounded per-tool timeouts
func NewToolExecutor(serper *config.SerperConfig, fetch *config.FetchConfig) *ToolExecutor {
	return &ToolExecutor{
		serper: serper,
		fetch:  fetch,
		searchClient: &http.Client{
			Timeout: time.Duration(serper.Timeout) * time.Second,
		},
		fetchClient: &http.Client{
			Timeout: time.Duration(fetch.Timeout) * time.Second,
		},
	}
}

// Specs returns the tool definitions exposed to the model
func (e *ToolExecutor) Specs() []ToolSpec {
	return []ToolSpec{
		{
			Type:        "function",
			Name:        ToolWebSearch,
			Description: "Web search for listings (centris, realtor.ca, remax-quebec, royallepage, duproprio).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"num":   map[string]any{"type": "integer"},
				},
				"required": []string{"query"},
			},
		},
		{
			Type:        "function",
			Name:        ToolHTTPGet,
			Description: "Fetch a page's HTML.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string"},
				},
				"required": []string{"url"},
			},
		},
	}
}

// Execute dispatches one tool call by name. Unknown tool names produce an
// error-carrying result: the model must receive a result for every call
// it made, or the conversation becomes malformed.
func (e *ToolExecutor) Execute(ctx context.Context, call ToolCall) ToolResult {
	switch call.Name {
	case ToolWebSearch:
		out := e.WebSearch(ctx, stringArg(call.Args, "query"), intArg(call.Args, "num", 5))
		return toolResult(call, out, out.Error == "")
	case ToolHTTPGet:
		out := e.HTTPGet(ctx, stringArg(call.Args, "url"))
		return toolResult(call, out, out.Error == "")
	default:
		name := call.Name
		if name == "" {
			name = "unknown"
		}
		return toolResult(call, map[string]string{"error": "unknown tool: " + name}, false)
	}
}

// ExecuteAll runs the calls of one round. Sibling calls are independent,
// so they run concurrently; results come back in call order and one
// result is produced per call.
func (e *ToolExecutor) ExecuteAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()
			results[i] = e.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// toolResult serializes a tool output into a result envelope
func toolResult(call ToolCall, output any, success bool) ToolResult {
	data, err := json.Marshal(output)
	if err != nil {
		data = []byte(`{"error":"failed to serialize tool output"}`)
		success = false
	}
	return ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Output:  string(data),
		Success: success,
	}
}

// SearchResult is one ranked result snippet
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchOutput is the web_search tool payload fed back to the model
type SearchOutput struct {
	Engine  string         `json:"engine"`
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Note    string         `json:"note,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// WebSearch queries the Serper API for ranked result snippets. Without a
// configured API key it returns an empty fallback result telling the
// model to request explicit URLs instead; provider failures carry the
// error in the payload. Bounded by the configured search timeout.
func (e *ToolExecutor) WebSearch(ctx context.Context, query string, num int) *SearchOutput {
	if num < 1 {
		num = 1
	}
	if num > e.serper.MaxResults {
		num = e.serper.MaxResults
	}

	out := &SearchOutput{
		Engine:  "serper",
		Query:   query,
		Results: []SearchResult{},
	}

	if e.serper.APIKey == "" {
		out.Engine = "fallback"
		out.Note = "No search provider is configured (SERPER_API_KEY missing). Ask the user for explicit listing URLs and fetch them with http_get instead."
		return out
	}

	reqBody, err := json.Marshal(map[string]any{"q": query, "num": num})
	if err != nil {
		out.Error = fmt.Sprintf("failed to marshal search request: %v", err)
		return out
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.serper.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		out.Error = fmt.Sprintf("failed to create search request: %v", err)
		return out
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", e.serper.APIKey)

	resp, err := e.searchClient.Do(httpReq)
	if err != nil {
		out.Error = fmt.Sprintf("search request failed: %v", err)
		return out
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		out.Error = fmt.Sprintf("failed to read search response: %v", err)
		return out
	}

	if resp.StatusCode != http.StatusOK {
		out.Error = fmt.Sprintf("search provider returned status %d", resp.StatusCode)
		return out
	}

	var serperResp struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.Unmarshal(body, &serperResp); err != nil {
		out.Error = fmt.Sprintf("failed to parse search response: %v", err)
		return out
	}

	for i, item := range serperResp.Organic {
		if i >= num {
			break
		}
		out.Results = append(out.Results, SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}

	return out
}

// FetchOutput is the http_get tool payload fed back to the model
type FetchOutput struct {
	Status  int    `json:"status"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// HTTPGet fetches raw page content, following redirects. Content above
// the configured maximum keeps a 70% head and 30% tail joined by the
// truncation marker: listing metadata shows up at both ends of a page.
// Network failures come back as status 0 with the error set.
func (e *ToolExecutor) HTTPGet(ctx context.Context, rawURL string) *FetchOutput {
	out := &FetchOutput{URL: rawURL}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		out.Error = "invalid url: " + rawURL
		return out
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", parsed.String(), nil)
	if err != nil {
		out.Error = fmt.Sprintf("failed to create fetch request: %v", err)
		return out
	}
	httpReq.Header.Set("User-Agent", e.fetch.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,*/*")

	resp, err := e.fetchClient.Do(httpReq)
	if err != nil {
		out.Error = fmt.Sprintf("fetch failed: %v", err)
		return out
	}
	defer resp.Body.Close()

	out.Status = resp.StatusCode
	if resp.Request != nil && resp.Request.URL != nil {
		// Report the post-redirect URL
		out.URL = resp.Request.URL.String()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.fetch.MaxBodyBytes))
	if err != nil {
		out.Error = fmt.Sprintf("failed to read page body: %v", err)
		return out
	}

	out.Content = truncateContent(string(body), e.fetch.MaxContentChars)
	if len(out.Content) < len(body) {
		log.Printf("Truncated %s from %d to %d chars", out.URL, len(body), len(out.Content))
	}

	return out
}

// truncateContent caps content at maxChars, keeping a head and a tail
// portion around a single truncation marker. Cut points snap back to
// rune boundaries so multibyte pages never yield invalid UTF-8.
func truncateContent(content string, maxChars int) string {
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}
	headLen := maxChars * 7 / 10
	for headLen > 0 && !utf8.RuneStart(content[headLen]) {
		headLen--
	}
	tailStart := len(content) - (maxChars - headLen)
	for tailStart < len(content) && !utf8.RuneStart(content[tailStart]) {
		tailStart++
	}
	return content[:headLen] + TruncationMarker + content[tailStart:]
}

// Argument helpers: model-produced arguments are loosely typed

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intArg(args map[string]any, key string, defaultValue int) int {
	v, ok := args[key]
	if !ok {
		return defaultValue
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return defaultValue
}
