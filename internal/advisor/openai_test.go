package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaskular/vaskular-backend/internal/config"
	"github.com/vaskular/vaskular-backend/internal/model"
)

var sampleRecord = &model.ScoreRecord{ID: 1, UserID: "u1", Circulation: 80, Oxygen: 95, SwellingRisk: 10, Fatigue: 20}

// newTestAdvisor points an OpenAI advisor at a local server running h.
func newTestAdvisor(t *testing.T, h http.HandlerFunc, timeout time.Duration) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAI(config.Config{
		OpenAIKey:      "test-key",
		OpenAIModel:    "gpt-3.5-turbo",
		OpenAIBaseURL:  srv.URL + "/v1",
		AdvisorTimeout: timeout,
	})
}

func writeCompletion(w http.ResponseWriter, contents ...string) {
	resp := openai.ChatCompletionResponse{ID: "chatcmpl-test", Object: "chat.completion", Model: "gpt-3.5-turbo"}
	for i, c := range contents {
		resp.Choices = append(resp.Choices, openai.ChatCompletionChoice{
			Index:        i,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c},
			FinishReason: openai.FinishReasonStop,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func TestOpenAI_Advise(t *testing.T) {
	const plan = "  Hydrate, elevate your legs,\nand rest for 48 hours.  "
	var got openai.ChatCompletionRequest
	var auth, path string

	adv := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, plan, "second choice is ignored")
	}, time.Second)

	out, err := adv.Advise(context.Background(), sampleRecord)
	require.NoError(t, err)
	assert.Equal(t, plan, out, "content must be returned unmodified")

	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, RenderPrompt(sampleRecord), got.Messages[1].Content)
	for _, n := range []string{"80", "95", "10", "20"} {
		assert.Contains(t, got.Messages[1].Content, n)
	}
}

func TestOpenAI_Advise_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "provider error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"internal provider detail","type":"server_error"}}`))
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"choices": [`))
			},
		},
		{
			name:    "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) { writeCompletion(w) },
		},
		{
			name:    "empty content",
			handler: func(w http.ResponseWriter, r *http.Request) { writeCompletion(w, "") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := newTestAdvisor(t, tt.handler, time.Second)
			out, err := adv.Advise(context.Background(), sampleRecord)
			assert.Empty(t, out)
			assert.ErrorIs(t, err, ErrExternalService)
		})
	}
}

func TestOpenAI_Advise_Timeout(t *testing.T) {
	adv := newTestAdvisor(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		writeCompletion(w, "too late")
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := adv.Advise(context.Background(), sampleRecord)
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenAI_Advise_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	adv := NewOpenAI(config.Config{OpenAIKey: "k", OpenAIBaseURL: url + "/v1", AdvisorTimeout: time.Second})
	_, err := adv.Advise(context.Background(), sampleRecord)
	assert.ErrorIs(t, err, ErrExternalService)
}

func TestNewOpenAI_Defaults(t *testing.T) {
	adv := NewOpenAI(config.Config{OpenAIKey: "k"})
	assert.Equal(t, DefaultModel, adv.model)
	assert.Equal(t, DefaultTimeout, adv.timeout)
}
