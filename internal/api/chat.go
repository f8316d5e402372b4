package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ioc-assistant/eassistant/internal/assistant"
	"github.com/ioc-assistant/eassistant/internal/tokens"
)

const (
	// maxMessages bounds the number of exchanges accepted per request.
	maxMessages = 50

	// maxContentLength bounds the combined character count of all question
	// and answer fields in a request.
	maxContentLength = 100000

	// maxBodyBytes caps the request body read from the wire.
	maxBodyBytes = 1 << 20
)

// chatMessage is one exchange in the request history. The final message
// carries the question to answer; its answer field is ignored.
type chatMessage struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type modelConfig struct {
	Temperature *float64 `json:"temperature"`
}

type chatRequest struct {
	UserID      string        `json:"userId"`
	Messages    []chatMessage `json:"messages"`
	ModelConfig *modelConfig  `json:"modelConfig"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatRespMsg `json:"message"`
	FinishReason string      `json:"finishReason"`
}

type chatRespMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type chatMetadata struct {
	ModelVersion string `json:"modelVersion"`

	// ProcessingTime is reported in whole milliseconds.
	ProcessingTime int64  `json:"processingTime"`
	Warning        string `json:"warning,omitempty"`
}

type chatResponse struct {
	Choices  []chatChoice `json:"choices"`
	Usage    chatUsage    `json:"usage"`
	Metadata chatMetadata `json:"metadata"`
}

// handleChat answers the most recent question in the request, using the
// preceding complete exchanges as conversation context for token accounting.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON", s.logger)
		return
	}

	if msg, ok := validateChatRequest(req); !ok {
		writeError(w, http.StatusBadRequest, msg, s.logger)
		return
	}

	last := req.Messages[len(req.Messages)-1]
	question := strings.TrimSpace(last.Question)

	var history []tokens.Pair
	for _, m := range req.Messages[:len(req.Messages)-1] {
		if m.Question != "" && m.Answer != "" {
			history = append(history, tokens.Pair{Question: m.Question, Answer: m.Answer})
		}
	}

	agentReq := assistant.Request{
		UserID:     req.UserID,
		Question:   question,
		PriorTurns: history,
	}
	if req.ModelConfig != nil {
		agentReq.Temperature = req.ModelConfig.Temperature
	}

	resp, err := s.agent.Query(r.Context(), agentReq)
	if err != nil {
		// Provider error text stays in the logs.
		s.logger.Error("chat query failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		if errors.Is(err, assistant.ErrGeneration) {
			writeError(w, http.StatusInternalServerError, "answer generation failed", s.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error", s.logger)
		return
	}

	out := chatResponse{
		Choices: []chatChoice{{
			Index:        0,
			Message:      chatRespMsg{Role: "assistant", Content: resp.Answer},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     resp.Usage.Prompt,
			CompletionTokens: resp.Usage.Completion,
			TotalTokens:      resp.Usage.Total,
		},
		Metadata: chatMetadata{
			ModelVersion:   resp.ModelVersion,
			ProcessingTime: resp.ProcessingTime.Milliseconds(),
		},
	}
	if resp.StorageDegraded {
		out.Metadata.Warning = "conversation history could not be saved"
	}

	writeJSON(w, http.StatusOK, out, s.logger)
}

// validateChatRequest checks the request shape. It returns a caller-facing
// message and false when the request is invalid.
func validateChatRequest(req chatRequest) (string, bool) {
	if len(req.Messages) == 0 {
		return "messages is required and must not be empty", false
	}
	if len(req.Messages) > maxMessages {
		return "too many messages: the limit is 50 per request", false
	}

	total := 0
	for _, m := range req.Messages {
		total += len(m.Question) + len(m.Answer)
	}
	if total > maxContentLength {
		return "combined message content exceeds the 100000 character limit", false
	}

	last := req.Messages[len(req.Messages)-1]
	if strings.TrimSpace(last.Question) == "" {
		return "the last message must contain a non-empty question", false
	}
	return "", true
}
