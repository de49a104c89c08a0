package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/campuseats/menuscraper/pkg/menu"
)

// Config controls how the AI rewriter behaves.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	Endpoint       string
	MaxBatch       int
	MaxConcurrency int
	HTTPClient     *http.Client
	Log            Logger // optional
}

// Logger receives progress and per-chunk failures.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Rewriter turns scraped menu names and descriptions into short, clear
// English via an LLM.
type Rewriter interface {
	RewriteMenus(ctx context.Context, restaurant string, items []menu.Item) ([]menu.Item, error)
}

const (
	defaultProvider       = "openai"
	defaultOpenAIModel    = "gpt-4.1-mini"
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultGeminiModel    = "gemini-1.5-flash"
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultMaxBatchSize   = 25
	defaultMaxConcurrency = 4
)

// NewRewriter builds a concrete Rewriter implementation based on the provided config.
func NewRewriter(cfg Config) (Rewriter, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("menu rewriting requires an API key (set ai.api_key in config)")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}

	var c completer
	switch cfg.Provider {
	case "openai":
		c = &openAICompleter{
			apiKey:   apiKey,
			model:    orDefault(cfg.Model, defaultOpenAIModel),
			endpoint: orDefault(cfg.Endpoint, defaultOpenAIEndpoint),
			client:   httpClient,
		}
	case "gemini":
		c = &geminiCompleter{
			apiKey:   apiKey,
			model:    orDefault(cfg.Model, defaultGeminiModel),
			endpoint: strings.TrimRight(orDefault(cfg.Endpoint, defaultGeminiEndpoint), "/"),
			client:   httpClient,
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}

	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}

	return &rewriter{
		completer:      c,
		maxBatchSize:   maxBatch,
		maxConcurrency: maxConcurrency,
		log:            log,
	}, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// completer sends one system+user prompt pair and returns the model's text.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

type rewriter struct {
	completer      completer
	maxBatchSize   int
	maxConcurrency int
	log            Logger
}

type rewrittenResult struct {
	Name        string
	Description string
}

// RewriteMenus rewrites items in chunks. A chunk that fails keeps its
// original items; an error is returned only when every chunk failed.
func (r *rewriter) RewriteMenus(ctx context.Context, restaurant string, items []menu.Item) ([]menu.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	r.log.Debugf("[ai] rewriting %d menus for %s", len(items), restaurant)

	type chunkWork struct {
		index int
		start int
		end   int
		items []menu.Item
	}

	var chunks []chunkWork
	for start := 0; start < len(items); start += r.maxBatchSize {
		end := start + r.maxBatchSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, chunkWork{
			index: len(chunks),
			start: start,
			end:   end,
			items: items[start:end],
		})
	}

	results := make([][]menu.Item, len(chunks))
	sem := make(chan struct{}, r.maxConcurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed int
	var firstErr error

	for _, chunk := range chunks {
		wg.Add(1)
		go func(c chunkWork) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rewritten, err := r.queryLLM(ctx, restaurant, c.start, c.items)
			if err != nil {
				r.log.Warnf("[ai] chunk %d-%d for %s failed, keeping originals: %v", c.start, c.end-1, restaurant, err)
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				results[c.index] = c.items
				return
			}
			results[c.index] = mergeRewritten(c.items, c.start, rewritten)
		}(chunk)
	}
	wg.Wait()

	if failed == len(chunks) {
		return nil, firstErr
	}

	out := make([]menu.Item, 0, len(items))
	for _, res := range results {
		out = append(out, res...)
	}
	return out, nil
}

func (r *rewriter) queryLLM(ctx context.Context, restaurant string, baseID int, items []menu.Item) (map[int]rewrittenResult, error) {
	payload := llmInput{Restaurant: restaurant}
	for idx, item := range items {
		payload.Items = append(payload.Items, llmInputItem{
			ID:          baseID + idx,
			Name:        item.Name,
			Description: item.Description,
		})
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	content, err := r.completer.complete(ctx, systemPrompt, string(payloadJSON))
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(stripCodeFence(content))
	if content == "" {
		return nil, errors.New("menu rewriting returned an empty response")
	}

	var parsed llmOutput
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse AI response: %w", err)
	}

	result := make(map[int]rewrittenResult, len(parsed.Items))
	for _, item := range parsed.Items {
		result[item.ID] = rewrittenResult{Name: item.Name, Description: item.Description}
	}
	return result, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

const systemPrompt = `You rewrite cafeteria menu entries for a food recommendation app.

For every item you receive:
- Produce a short, clear English dish name. Translate Korean where needed.
- Keep dishes joined with " + " as separate dishes joined with " + ".
- Write a one-sentence description of the dish. Reuse the given description if it is already clear.
- Never invent prices, allergens or ingredients.
- If unsure, return the provided name unchanged.

Return ONLY JSON following this schema:
{
  "items": [
    {"id": 0, "name": "string", "description": "string"}
  ]
}

Every input id must appear exactly once.`

type llmInput struct {
	Restaurant string         `json:"restaurant"`
	Items      []llmInputItem `json:"items"`
}

type llmInputItem struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type llmOutput struct {
	Items []llmOutputItem `json:"items"`
}

type llmOutputItem struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// mergeRewritten applies rewritten names and descriptions by id. Items the
// model skipped, or answered with an empty name, stay as they were.
func mergeRewritten(items []menu.Item, baseID int, rewritten map[int]rewrittenResult) []menu.Item {
	out := make([]menu.Item, 0, len(items))
	for idx, original := range items {
		cloned := original
		if res, ok := rewritten[baseID+idx]; ok {
			if name := strings.TrimSpace(res.Name); name != "" {
				cloned.Name = name
				cloned.Description = strings.TrimSpace(res.Description)
			}
		}
		out = append(out, cloned)
	}
	return out
}

type openAICompleter struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

type openAIChatRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *openAICompleter) complete(ctx context.Context, system, user string) (string, error) {
	reqBody := openAIChatRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.1,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErrResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErrResp)
		if apiErrResp.Error.Message != "" {
			return "", fmt.Errorf("menu rewriting: %s", apiErrResp.Error.Message)
		}
		return "", fmt.Errorf("menu rewriting failed with HTTP %d", resp.StatusCode)
	}

	var apiResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}
	if len(apiResp.Choices) == 0 {
		return "", errors.New("menu rewriting returned no choices")
	}
	return apiResp.Choices[0].Message.Content, nil
}

type geminiCompleter struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func (g *geminiCompleter) complete(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"systemInstruction": map[string]any{
			"parts": []map[string]string{{"text": system}},
		},
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": user}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":      0.1,
			"responseMimeType": "application/json",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		if msg := gjson.GetBytes(raw, "error.message").String(); msg != "" {
			return "", fmt.Errorf("gemini api error: %s", msg)
		}
		return "", fmt.Errorf("gemini api error: HTTP %d", resp.StatusCode)
	}

	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return "", errors.New("empty gemini response")
	}
	return text.String(), nil
}
