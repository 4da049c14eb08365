package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcerpts(t *testing.T) {
	assert.Empty(t, Excerpts(nil))
	assert.Equal(t, []string{"a", "b"}, Excerpts([]string{"a", "b", "a", "b"}))

	many := make([]string, 0, 30)
	for i := range 30 {
		many = append(many, fmt.Sprintf("line %d", i))
	}
	got := Excerpts(many)
	require.Len(t, got, MaxExcerpts)
	assert.Equal(t, "line 0", got[0])
	assert.Equal(t, "line 19", got[MaxExcerpts-1])
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *Verdict
		wantErr bool
	}{
		{
			name:    "plain",
			content: `{"multiplier": 0.5, "reasoning": "vague"}`,
			want:    &Verdict{Multiplier: 0.5, Reasoning: "vague"},
		},
		{
			name:    "json fence",
			content: "```json\n{\"multiplier\": 1, \"reasoning\": \"clear\"}\n```",
			want:    &Verdict{Multiplier: 1, Reasoning: "clear"},
		},
		{
			name:    "bare fence upper case",
			content: "```JSON\n{\"multiplier\": 0}\n```",
			want:    &Verdict{Multiplier: 0},
		},
		{
			name:    "js fence",
			content: "```js\n{\"multiplier\": 0.25, \"reasoning\": \"thin\"}\n```",
			want:    &Verdict{Multiplier: 0.25, Reasoning: "thin"},
		},
		{
			name:    "jsonc fence",
			content: "```jsonc\n{\"multiplier\": 0.75}\n```",
			want:    &Verdict{Multiplier: 0.75},
		},
		{
			name:    "clamped high",
			content: `{"multiplier": 3}`,
			want:    &Verdict{Multiplier: 1},
		},
		{
			name:    "clamped low",
			content: `{"multiplier": -0.4, "reasoning": "x"}`,
			want:    &Verdict{Multiplier: 0, Reasoning: "x"},
		},
		{name: "missing multiplier", content: `{"reasoning": "x"}`, wantErr: true},
		{name: "string multiplier", content: `{"multiplier": "high"}`, wantErr: true},
		{name: "prose", content: "I think it is fine.", wantErr: true},
		{name: "empty", content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(context.Background(), DefaultConfig())
	assert.ErrorIs(t, err, ErrNoCredential)

	c, err := NewClient(context.Background(), Config{APIKey: "k", BaseURL: "http://x/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "http://x/v1", c.Config().BaseURL)
	assert.Equal(t, DefaultModel, c.Config().Model)
	assert.Equal(t, DefaultTimeout, c.Config().Timeout)
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestClient_Judge(t *testing.T) {
	var got completionRequest
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(completion("```json\n{\"multiplier\": 0.5, \"reasoning\": \"vague\"}\n```")))
	}))
	defer s.Close()

	c, err := NewClient(context.Background(), Config{
		BaseURL:     s.URL + "/v1",
		APIKey:      "secret",
		Model:       "test-model",
		Temperature: 0.1,
	})
	require.NoError(t, err)

	v, err := c.Judge(context.Background(), "Testability", []string{"a", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.Multiplier)
	assert.Equal(t, "vague", v.Reasoning)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 0.1, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, `"Testability" scan`)
	assert.Equal(t, "Dimension: Testability\nMatched excerpts:\na\nb", got.Messages[1].Content)
}

func TestClient_JudgeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: ErrTransport,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			wantErr: ErrParse,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices": []}`))
			},
			wantErr: ErrParse,
		},
		{
			name: "prose content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(completion("looks good to me")))
			},
			wantErr: ErrParse,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantErr: ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := httptest.NewServer(tt.handler)
			defer s.Close()

			c, err := NewClient(context.Background(), Config{
				BaseURL: s.URL,
				APIKey:  "k",
				Timeout: 200 * time.Millisecond,
			})
			require.NoError(t, err)

			v, err := c.Judge(context.Background(), "Role Clarity", []string{"You are a reviewer."})
			assert.Nil(t, v)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	req := newRequest(DefaultConfig(), "Escape Hatches", nil)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, "You evaluate AI agent prompt instructions"))
	assert.Contains(t, req.Messages[0].Content, `Respond ONLY with JSON`)
}
