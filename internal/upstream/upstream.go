// ABOUTME: Wire types for the hosted completion service's streaming Messages API
// ABOUTME: Request body structs and the SSE payloads the stream parser consumes

package upstream

import "github.com/sureline/assist-gateway/internal/chat"

const (
	defaultMaxTokens = 1024
	apiVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
)

// apiRequest is the JSON body sent to the completion service.
type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Stream    bool         `json:"stream"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// convertHistory splits a validated history into the system prompt and the
// alternating user/assistant turns the wire format expects.
func convertHistory(msgs []chat.Message) (system string, turns []apiMessage) {
	for _, m := range msgs {
		if m.Role == chat.RoleSystem {
			system = m.Content
			continue
		}
		turns = append(turns, apiMessage{Role: string(m.Role), Content: m.Content})
	}
	return system, turns
}

// SSE payload types.

type sseContentBlockDelta struct {
	Type  string   `json:"type"`
	Index int      `json:"index"`
	Delta sseDelta `json:"delta"`
}

type sseDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type sseMessageDelta struct {
	Type  string             `json:"type"`
	Delta sseMessageDeltaVal `json:"delta"`
}

type sseMessageDeltaVal struct {
	StopReason *string `json:"stop_reason"`
}

type sseError struct {
	Type  string         `json:"type"`
	Error sseErrorDetail `json:"error"`
}

type sseErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// apiErrorResponse is the JSON body returned on non-200 HTTP responses.
type apiErrorResponse struct {
	Type  string         `json:"type"`
	Error sseErrorDetail `json:"error"`
}
