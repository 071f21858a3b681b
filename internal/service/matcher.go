package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"core/internal/config"
	"core/internal/model"
	"core/internal/repository"
)

// Sentinel errors crossing the service boundary. Tool failures and
// extraction failures never surface here; they degrade into the
// conversation or into an empty listing set.
var (
	// ErrUpstream means the model call itself failed; fatal for the
	// request, not retried
	ErrUpstream = errors.New("upstream model error")

	// ErrNoContent means the loop completed with no text and no listings
	ErrNoContent = errors.New("model returned no usable content")
)

// MatchEventCallback receives streaming progress events during a match
type MatchEventCallback func(event string, data any) error

// MatcherService drives the tool-augmented matching loop: a bounded
// sequence of model rounds, dispatching requested tool calls and feeding
// their results back until the model produces a final answer or the
// round budget runs out.
//
// Continuation contract: tool results are fed back by appending turns.
// The response's own output items are echoed into the next input,
// followed by one function_call_output item per call. The out-of-band
// submit-by-response-id mode is not used.
type MatcherService struct {
	ai      AIClient
	tools   *ToolExecutor
	archive *repository.MatchArchive // nil when the archive is disabled
	cfg     *config.MatcherConfig
}

// NewMatcherService creates a new matcher service
func NewMatcherService(ai AIClient, tools *ToolExecutor, archive *repository.MatchArchive, cfg *config.MatcherConfig) *MatcherService {
	return &MatcherService{
		ai:      ai,
		tools:   tools,
		archive: archive,
		cfg:     cfg,
	}
}

// Match runs one matching request to completion
func (s *MatcherService) Match(ctx context.Context, crit *model.Criteria) (*model.MatchResult, error) {
	return s.match(ctx, crit, nil)
}

// MatchStream runs one matching request, reporting loop progress through
// the callback. A callback error aborts the request (client gone).
func (s *MatcherService) MatchStream(ctx context.Context, crit *model.Criteria, callback MatchEventCallback) (*model.MatchResult, error) {
	return s.match(ctx, crit, callback)
}

func (s *MatcherService) match(ctx context.Context, crit *model.Criteria, callback MatchEventCallback) (*model.MatchResult, error) {
	startTime := time.Now()

	input := []any{
		Turn{Role: "system", Content: BuildSystemPrompt()},
		Turn{Role: "user", Content: BuildUserPrompt(crit)},
	}

	var toolSpecs []ToolSpec
	if crit.AllowWeb {
		toolSpecs = s.tools.Specs()
	}

	var lastResp *ModelResponse
	text := ""
	rounds := 0

	for round := 0; round < s.cfg.MaxRounds; round++ {
		rounds++
		if err := emit(callback, "round", map[string]any{"round": rounds}); err != nil {
			return nil, err
		}

		resp, err := s.ai.CreateResponse(ctx, &ResponseRequest{
			Input: input,
			Tools: toolSpecs,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		lastResp = resp

		calls := NormalizeToolCalls(resp)
		if len(calls) == 0 {
			text = RecoverText(resp)
			break
		}

		for _, call := range calls {
			if err := emit(callback, "tool_call", map[string]any{"name": call.Name, "args": call.Args}); err != nil {
				return nil, err
			}
		}

		results := s.tools.ExecuteAll(ctx, calls)

		for _, result := range results {
			if err := emit(callback, "tool_result", map[string]any{"name": result.Name, "success": result.Success}); err != nil {
				return nil, err
			}
		}

		// Echo the model's output items so the transport can correlate
		// call ids, then append one result item per call
		for _, raw := range resp.Output {
			input = append(input, raw)
		}
		for _, result := range results {
			input = append(input, functionCallOutputItem{
				Type:   "function_call_output",
				CallID: result.CallID,
				Output: result.Output,
			})
		}
	}

	// Budget exhausted mid-negotiation: recover whatever text the last
	// response carries. Possibly empty; accepted degraded outcome.
	if text == "" {
		text = RecoverText(lastResp)
	}

	listings := ExtractListings(text, crit.Limit)

	if text == "" && len(listings) == 0 {
		return nil, fmt.Errorf("%w: try allow_web=false to isolate tools, or ensure SERPER_API_KEY is set", ErrNoContent)
	}

	result := &model.MatchResult{
		Reply:      text,
		Properties: listings,
	}
	if result.Reply == "" {
		result.Reply = "—"
	}

	if s.archive != nil {
		matchID := newMatchID()
		result.MatchID = matchID
		took := time.Since(startTime).Milliseconds()
		// Archive off the request path (non-blocking)
		go s.archiveMatch(matchID, crit, result, rounds, took)
	}

	return result, nil
}

// archiveMatch logs the match and archives its listings with summary
// embeddings. Failures are logged, never surfaced.
func (s *MatcherService) archiveMatch(matchID string, crit *model.Criteria, result *model.MatchResult, rounds int, tookMs int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry := &model.MatchLog{
		MatchID:  matchID,
		Location: crit.Location,
		Criteria: model.JSONMap{
			"budget":   crit.Budget,
			"beds":     crit.Beds,
			"baths":    crit.Baths,
			"keywords": crit.Keywords,
			"limit":    crit.Limit,
			"language": crit.Language,
		},
		Reply:        result.Reply,
		ListingCount: len(result.Properties),
		Rounds:       rounds,
		TookMs:       tookMs,
	}
	if err := s.archive.LogMatch(ctx, entry); err != nil {
		log.Printf("Warning: failed to log match %s: %v", matchID, err)
		return
	}

	if len(result.Properties) == 0 {
		return
	}

	var embeddings [][]float32
	if s.ai.IsEnabled() {
		texts := make([]string, len(result.Properties))
		for i, listing := range result.Properties {
			texts[i] = listingSummary(listing)
		}
		embs, err := s.ai.CreateEmbeddings(ctx, texts)
		if err != nil {
			log.Printf("Warning: failed to embed listings for match %s: %v", matchID, err)
		} else {
			embeddings = embs
		}
	}

	success, errs := s.archive.ArchiveListings(ctx, matchID, result.Properties, embeddings)
	if len(errs) > 0 {
		log.Printf("Warning: archived %d/%d listings for match %s: %v", success, len(result.Properties), matchID, errs)
	}
}

// listingSummary builds the text embedded for one archived listing
func listingSummary(l model.Listing) string {
	parts := []string{}
	if l.Address != nil {
		parts = append(parts, *l.Address)
	}
	if l.Type != nil {
		parts = append(parts, *l.Type)
	}
	if l.PriceCAD != nil {
		parts = append(parts, fmt.Sprintf("%d CAD", *l.PriceCAD))
	}
	if l.Beds != nil {
		parts = append(parts, fmt.Sprintf("%d beds", *l.Beds))
	}
	if l.Baths != nil {
		parts = append(parts, fmt.Sprintf("%g baths", *l.Baths))
	}
	if l.Note != nil {
		parts = append(parts, *l.Note)
	}
	if len(parts) == 0 && l.MLS != nil {
		parts = append(parts, "MLS "+*l.MLS)
	}
	return strings.Join(parts, ", ")
}

func emit(callback MatchEventCallback, event string, data any) error {
	if callback == nil {
		return nil
	}
	return callback(event, data)
}

func newMatchID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("m%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
