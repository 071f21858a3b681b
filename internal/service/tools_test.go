package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"core/internal/config"
)

func newTestExecutor(serper config.SerperConfig, fetch config.FetchConfig) *ToolExecutor {
	if serper.Timeout == 0 {
		serper.Timeout = 5
	}
	if serper.MaxResults == 0 {
		serper.MaxResults = 10
	}
	if fetch.Timeout == 0 {
		fetch.Timeout = 5
	}
	if fetch.MaxContentChars == 0 {
		fetch.MaxContentChars = 20000
	}
	if fetch.MaxBodyBytes == 0 {
		fetch.MaxBodyBytes = 2 * 1024 * 1024
	}
	if fetch.UserAgent == "" {
		fetch.UserAgent = "ListingMatcher/1.0"
	}
	return NewToolExecutor(&serper, &fetch)
}

func TestWebSearch_ParsesOrganicResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "test-key" {
			t.Errorf("missing X-API-KEY header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic":[
			{"title":"Condo a vendre - Centris","link":"https://www.centris.ca/fr/condo~a-vendre~montreal/1234567","snippet":"2 chambres, 1 salle de bain"},
			{"title":"Maison - REALTOR.ca","link":"https://www.realtor.ca/real-estate/X123456","snippet":"Belle maison"}
		]}`))
	}))
	defer server.Close()

	executor := newTestExecutor(
		config.SerperConfig{APIKey: "test-key", Endpoint: server.URL},
		config.FetchConfig{},
	)

	out := executor.WebSearch(context.Background(), "condo montreal", 5)
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if out.Engine != "serper" {
		t.Errorf("Engine = %q, want %q", out.Engine, "serper")
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	if out.Results[0].URL != "https://www.centris.ca/fr/condo~a-vendre~montreal/1234567" {
		t.Errorf("unexpected first result URL: %s", out.Results[0].URL)
	}
	if out.Results[1].Title != "Maison - REALTOR.ca" {
		t.Errorf("unexpected second result title: %s", out.Results[1].Title)
	}
}

func TestWebSearch_NoKeyFallback(t *testing.T) {
	executor := newTestExecutor(config.SerperConfig{}, config.FetchConfig{})

	out := executor.WebSearch(context.Background(), "condo montreal", 5)
	if out.Engine != "fallback" {
		t.Errorf("Engine = %q, want %q", out.Engine, "fallback")
	}
	if len(out.Results) != 0 {
		t.Errorf("expected no results, got %d", len(out.Results))
	}
	if out.Note == "" {
		t.Error("expected a note steering the model toward http_get")
	}
	if out.Error != "" {
		t.Errorf("fallback is not an error, got %q", out.Error)
	}
}

func TestWebSearch_ProviderErrorInPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	executor := newTestExecutor(
		config.SerperConfig{APIKey: "test-key", Endpoint: server.URL},
		config.FetchConfig{},
	)

	out := executor.WebSearch(context.Background(), "condo", 5)
	if out.Error == "" {
		t.Fatal("expected error in payload")
	}
	if !strings.Contains(out.Error, "500") {
		t.Errorf("error should name the status, got %q", out.Error)
	}
	if len(out.Results) != 0 {
		t.Errorf("expected no results on provider failure, got %d", len(out.Results))
	}
}

func TestWebSearch_ClampsNum(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.Write([]byte(`{"organic":[]}`))
	}))
	defer server.Close()

	executor := newTestExecutor(
		config.SerperConfig{APIKey: "test-key", Endpoint: server.URL, MaxResults: 10},
		config.FetchConfig{},
	)

	executor.WebSearch(context.Background(), "condo", 50)
	if !strings.Contains(gotBody, `"num":10`) {
		t.Errorf("num should clamp to MaxResults, request body: %s", gotBody)
	}

	executor.WebSearch(context.Background(), "condo", 0)
	if !strings.Contains(gotBody, `"num":1`) {
		t.Errorf("num should clamp up to 1, request body: %s", gotBody)
	}
}

func TestHTTPGet_Truncation(t *testing.T) {
	page := strings.Repeat("a", 800) + strings.Repeat("z", 800)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	maxChars := 1000
	executor := newTestExecutor(
		config.SerperConfig{},
		config.FetchConfig{MaxContentChars: maxChars},
	)

	out := executor.HTTPGet(context.Background(), server.URL)
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if out.Status != 200 {
		t.Errorf("Status = %d, want 200", out.Status)
	}

	if got, want := len(out.Content), maxChars+len(TruncationMarker); got != want {
		t.Errorf("truncated length = %d, want %d", got, want)
	}
	if strings.Count(out.Content, TruncationMarker) != 1 {
		t.Errorf("expected exactly one truncation marker")
	}

	// 70% head, 30% tail
	headLen := maxChars * 7 / 10
	if !strings.HasPrefix(out.Content, page[:headLen]) {
		t.Error("head portion should come from the start of the page")
	}
	if !strings.HasSuffix(out.Content, page[len(page)-(maxChars-headLen):]) {
		t.Error("tail portion should come from the end of the page")
	}
}

func TestTruncateContent_RuneBoundaries(t *testing.T) {
	// 2-byte runes with an odd head cut: the naive byte slice would
	// split a rune on both sides of the marker
	content := strings.Repeat("é", 1000)
	maxChars := 999

	got := truncateContent(content, maxChars)
	if !utf8.ValidString(got) {
		t.Error("truncated content must be valid UTF-8")
	}
	if strings.Count(got, TruncationMarker) != 1 {
		t.Error("expected exactly one truncation marker")
	}
	if len(got) > maxChars+len(TruncationMarker) {
		t.Errorf("truncated length = %d, want at most %d", len(got), maxChars+len(TruncationMarker))
	}
}

func TestHTTPGet_ShortContentUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>small page</html>"))
	}))
	defer server.Close()

	executor := newTestExecutor(config.SerperConfig{}, config.FetchConfig{})

	out := executor.HTTPGet(context.Background(), server.URL)
	if out.Content != "<html>small page</html>" {
		t.Errorf("short content should pass through unchanged, got %q", out.Content)
	}
	if strings.Contains(out.Content, TruncationMarker) {
		t.Error("no marker expected for short content")
	}
}

func TestHTTPGet_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	executor := newTestExecutor(config.SerperConfig{}, config.FetchConfig{})

	out := executor.HTTPGet(context.Background(), server.URL)
	if out.Status != 0 {
		t.Errorf("Status = %d, want 0 on network failure", out.Status)
	}
	if out.Error == "" {
		t.Error("expected error on network failure")
	}
}

func TestHTTPGet_InvalidURL(t *testing.T) {
	executor := newTestExecutor(config.SerperConfig{}, config.FetchConfig{})

	for _, rawURL := range []string{"ftp://example.com/x", "not a url", ""} {
		out := executor.HTTPGet(context.Background(), rawURL)
		if out.Error == "" {
			t.Errorf("HTTPGet(%q) should report an error", rawURL)
		}
		if out.Status != 0 {
			t.Errorf("HTTPGet(%q) Status = %d, want 0", rawURL, out.Status)
		}
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	executor := newTestExecutor(config.SerperConfig{}, config.FetchConfig{})

	result := executor.Execute(context.Background(), ToolCall{ID: "c1", Name: "delete_listing", Args: map[string]any{}})
	if result.Success {
		t.Error("unknown tool must not succeed")
	}
	if result.CallID != "c1" {
		t.Errorf("CallID = %q, want %q", result.CallID, "c1")
	}
	if !strings.Contains(result.Output, "unknown tool: delete_listing") {
		t.Errorf("output should name the unknown tool, got %s", result.Output)
	}
}

func TestExecuteAll_OneResultPerCallInOrder(t *testing.T) {
	executor := newTestExecutor(config.SerperConfig{}, config.FetchConfig{})

	calls := []ToolCall{
		{ID: "a", Name: ToolWebSearch, Args: map[string]any{"query": "condo"}}, // fallback, no network
		{ID: "b", Name: "bogus", Args: map[string]any{}},
		{ID: "c", Name: ToolHTTPGet, Args: map[string]any{"url": "not-a-url"}},
	}

	results := executor.ExecuteAll(context.Background(), calls)
	if len(results) != len(calls) {
		t.Fatalf("expected %d results, got %d", len(calls), len(results))
	}
	for i, call := range calls {
		if results[i].CallID != call.ID {
			t.Errorf("results[%d].CallID = %q, want %q", i, results[i].CallID, call.ID)
		}
	}
	if !results[0].Success {
		t.Error("fallback search result should still be a success")
	}
	if results[1].Success || results[2].Success {
		t.Error("bogus tool and invalid URL must not succeed")
	}
}
