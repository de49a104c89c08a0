package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuseats/menuscraper/pkg/menu"
)

func TestMergeRewritten(t *testing.T) {
	tests := []struct {
		name      string
		baseID    int
		input     []menu.Item
		rewritten map[int]rewrittenResult
		expected  []menu.Item
	}{
		{
			name:   "applies names and keeps the rest of the item",
			baseID: 3,
			input: []menu.Item{
				{Meal: menu.Lunch, Name: "김치찌개", Price: menu.Float(5000), MainIngredients: []menu.Ingredient{{Name: "pork"}}},
			},
			rewritten: map[int]rewrittenResult{
				3: {Name: " Kimchi Stew ", Description: "Spicy stew with aged kimchi."},
			},
			expected: []menu.Item{
				{Meal: menu.Lunch, Name: "Kimchi Stew", Description: "Spicy stew with aged kimchi.", Price: menu.Float(5000), MainIngredients: []menu.Ingredient{{Name: "pork"}}},
			},
		},
		{
			name:   "falls back to original when missing",
			baseID: 0,
			input: []menu.Item{
				{Name: "Soup", Description: "hot"},
			},
			rewritten: map[int]rewrittenResult{},
			expected: []menu.Item{
				{Name: "Soup", Description: "hot"},
			},
		},
		{
			name:   "empty name keeps original",
			baseID: 0,
			input: []menu.Item{
				{Name: "Soup", Description: "hot"},
			},
			rewritten: map[int]rewrittenResult{0: {Name: "  ", Description: "ignored"}},
			expected: []menu.Item{
				{Name: "Soup", Description: "hot"},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, mergeRewritten(tc.input, tc.baseID, tc.rewritten))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	require.Equal(t, `{"items":[]}`, stripCodeFence("```json\n{\"items\":[]}\n```"))
	require.Equal(t, `{"items":[]}`, stripCodeFence(`{"items":[]}`))
}

// echoItems answers a rewrite prompt by upper-casing every name. Items whose
// name contains "FAIL" make the whole request fail.
func echoItems(t *testing.T, user string) (string, bool) {
	t.Helper()
	var in llmInput
	require.NoError(t, json.Unmarshal([]byte(user), &in))
	var out llmOutput
	for _, it := range in.Items {
		if strings.Contains(it.Name, "FAIL") {
			return "", false
		}
		out.Items = append(out.Items, llmOutputItem{ID: it.ID, Name: strings.ToUpper(it.Name), Description: "desc " + it.Name})
	}
	data, err := json.Marshal(out)
	require.NoError(t, err)
	return string(data), true
}

func TestOpenAIRewriter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)

		content, ok := echoItems(t, req.Messages[1].Content)
		if !ok {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	defer srv.Close()

	rw, err := NewRewriter(Config{APIKey: "sk-test", Model: "gpt-test", Endpoint: srv.URL, MaxBatch: 2, MaxConcurrency: 2})
	require.NoError(t, err)

	items := []menu.Item{{Name: "a"}, {Name: "b"}, {Name: "FAIL c"}, {Name: "d"}}
	out, err := rw.RewriteMenus(context.Background(), "Faculty Club", items)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))

	// The second chunk failed, so it keeps its originals.
	require.Equal(t, []menu.Item{
		{Name: "A", Description: "desc a"},
		{Name: "B", Description: "desc b"},
		{Name: "FAIL c"},
		{Name: "d"},
	}, out)

	_, err = rw.RewriteMenus(context.Background(), "Faculty Club", []menu.Item{{Name: "FAIL"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestGeminiRewriter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		require.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content, ok := echoItems(t, body.Contents[0].Parts[0].Text)
		require.True(t, ok)
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, "```json\n"+content+"\n```")
	}))
	defer srv.Close()

	rw, err := NewRewriter(Config{Provider: "Gemini", APIKey: "g-key", Model: "gemini-test", Endpoint: srv.URL + "/models/"})
	require.NoError(t, err)

	out, err := rw.RewriteMenus(context.Background(), "Faculty Club", []menu.Item{{Name: "bibimbap", Price: menu.Float(7000)}})
	require.NoError(t, err)
	require.Equal(t, []menu.Item{{Name: "BIBIMBAP", Description: "desc bibimbap", Price: menu.Float(7000)}}, out)
}

func TestNewRewriterValidation(t *testing.T) {
	_, err := NewRewriter(Config{})
	require.Error(t, err)

	_, err = NewRewriter(Config{Provider: "claude", APIKey: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported AI provider")
}
