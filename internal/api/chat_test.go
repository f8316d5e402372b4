package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ioc-assistant/eassistant/internal/assistant"
	"github.com/ioc-assistant/eassistant/internal/tokens"
)

func okResponse() *assistant.Response {
	return &assistant.Response{
		Answer:         "Enrollment closes June 30.",
		Usage:          tokens.Usage{Prompt: 12, Completion: 6, Total: 18},
		ProcessingTime: 150 * time.Millisecond,
		ModelVersion:   "openai/gpt-4o-mini",
	}
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = "10.0.0.1:12345"
	srv.Handler().ServeHTTP(w, r)
	return w
}

func decodeChatResponse(t *testing.T, w *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestHandleChat_Success(t *testing.T) {
	agent := &stubAgent{resp: okResponse()}
	srv := newTestServer(t, agent)

	w := postChat(t, srv, `{"messages":[{"question":"When does enrollment close?"}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeChatResponse(t, w)
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(resp.Choices))
	}
	choice := resp.Choices[0]
	if choice.Index != 0 {
		t.Errorf("choice index = %d, want 0", choice.Index)
	}
	if choice.Message.Role != "assistant" {
		t.Errorf("role = %q, want %q", choice.Message.Role, "assistant")
	}
	if choice.Message.Content != "Enrollment closes June 30." {
		t.Errorf("content = %q", choice.Message.Content)
	}
	if choice.FinishReason != "stop" {
		t.Errorf("finishReason = %q, want %q", choice.FinishReason, "stop")
	}
	if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 6 || resp.Usage.TotalTokens != 18 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Metadata.ModelVersion != "openai/gpt-4o-mini" {
		t.Errorf("modelVersion = %q", resp.Metadata.ModelVersion)
	}
	if resp.Metadata.ProcessingTime != 150 {
		t.Errorf("processingTime = %v, want 150 milliseconds", resp.Metadata.ProcessingTime)
	}
	if resp.Metadata.Warning != "" {
		t.Errorf("warning = %q, want empty", resp.Metadata.Warning)
	}
}

func TestHandleChat_ProcessingTimeInWholeMilliseconds(t *testing.T) {
	resp := okResponse()
	resp.ProcessingTime = 1500 * time.Millisecond
	srv := newTestServer(t, &stubAgent{resp: resp})

	w := postChat(t, srv, `{"messages":[{"question":"hello?"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}

	// The wire value is an integer millisecond count, never fractional
	// seconds.
	var raw struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got := string(raw.Metadata["processingTime"]); got != "1500" {
		t.Errorf("processingTime on the wire = %s, want 1500", got)
	}
}

func TestHandleChat_TrimsQuestionAndForwardsHistory(t *testing.T) {
	agent := &stubAgent{resp: okResponse()}
	srv := newTestServer(t, agent)

	body := `{
		"userId": "alice",
		"messages": [
			{"question": "What is the IOC?", "answer": "An online institute."},
			{"question": "incomplete, no answer"},
			{"question": "  When does enrollment close?  "}
		],
		"modelConfig": {"temperature": 0.7}
	}`
	w := postChat(t, srv, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}

	req := agent.last()
	if req.UserID != "alice" {
		t.Errorf("UserID = %q, want %q", req.UserID, "alice")
	}
	if req.Question != "When does enrollment close?" {
		t.Errorf("Question = %q, want trimmed", req.Question)
	}
	// Only the complete exchange counts as history.
	if len(req.PriorTurns) != 1 {
		t.Fatalf("PriorTurns = %d, want 1", len(req.PriorTurns))
	}
	if req.PriorTurns[0].Question != "What is the IOC?" {
		t.Errorf("history question = %q", req.PriorTurns[0].Question)
	}
	if req.Temperature == nil || *req.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", req.Temperature)
	}
}

func TestHandleChat_ValidationErrors(t *testing.T) {
	longContent := strings.Repeat("x", maxContentLength+1)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"empty body", ``},
		{"missing messages", `{"modelConfig":{}}`},
		{"empty messages", `{"messages":[]}`},
		{"too many messages", tooManyMessagesBody()},
		{"content too long", fmt.Sprintf(`{"messages":[{"question":%q}]}`, longContent)},
		{"blank last question", `{"messages":[{"question":"   "}]}`},
		{"last message answer only", `{"messages":[{"question":"","answer":"orphan"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := &stubAgent{resp: okResponse()}
			srv := newTestServer(t, agent)

			w := postChat(t, srv, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, http.StatusBadRequest, w.Body.String())
			}
			if agent.calls != 0 {
				t.Errorf("agent called %d times, want 0", agent.calls)
			}

			var e errorBody
			if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if e.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func tooManyMessagesBody() string {
	var sb strings.Builder
	sb.WriteString(`{"messages":[`)
	for i := 0; i <= maxMessages; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"question":"q","answer":"a"}`)
	}
	sb.WriteString(`]}`)
	return sb.String()
}

func TestHandleChat_GenerationFailureHidesProviderError(t *testing.T) {
	agent := &stubAgent{
		err: fmt.Errorf("%w: provider said: invalid api key sk-secret", assistant.ErrGeneration),
	}
	srv := newTestServer(t, agent)

	w := postChat(t, srv, `{"messages":[{"question":"hello?"}]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "sk-secret") {
		t.Error("provider error text leaked to the client")
	}

	var e errorBody
	if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
		t.Fatalf("error body not JSON: %v", err)
	}
	if e.Error != "answer generation failed" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestHandleChat_StorageDegradedWarning(t *testing.T) {
	resp := okResponse()
	resp.StorageDegraded = true
	srv := newTestServer(t, &stubAgent{resp: resp})

	w := postChat(t, srv, `{"messages":[{"question":"hello?"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	out := decodeChatResponse(t, w)
	if out.Metadata.Warning == "" {
		t.Error("expected a warning in metadata when persistence fails")
	}
	if out.Choices[0].Message.Content != resp.Answer {
		t.Errorf("content = %q, want the answer despite degraded storage", out.Choices[0].Message.Content)
	}
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubAgent{resp: okResponse()})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/chat", nil)
	r.RemoteAddr = "10.0.0.1:12345"
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
