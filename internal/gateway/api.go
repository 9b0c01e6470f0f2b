// ABOUTME: HTTP handler for the conversation endpoint, streaming replies via SSE.
// ABOUTME: Validates the posted history, injects the system prompt, and relays fragments.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sureline/assist-gateway/internal/chat"
	"github.com/sureline/assist-gateway/internal/responder"
	"github.com/sureline/assist-gateway/internal/store"
)

// ChatRequest is the JSON request body for POST /api/chat. Messages is the
// client's full accumulated history for the turn; the gateway holds no
// conversation state between requests. SessionID is optional and opts the
// turn into server-side audit.
type ChatRequest struct {
	Messages  []chat.Message `json:"messages"`
	SessionID string         `json:"session_id,omitempty"`
}

// QuickQuestionsResponse is the JSON response for GET /api/quick-questions.
type QuickQuestionsResponse struct {
	Questions []string `json:"questions"`
}

// handleChat handles POST /api/chat requests.
//
// The turn proceeds in order:
//  1. Parse and validate the posted history - malformed input fails with 400
//     before anything is forwarded upstream.
//  2. Prepend the system prompt unless the history already starts with one.
//  3. Call the completion service under the configured wall-clock budget.
//  4. Relay fragments to the client as SSE text events, then a done event
//     carrying the assembled reply. Failures surface as an error event; the
//     client treats closure without a done event as a failed turn.
//
// One attempt per request; the gateway never retries upstream.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseChatRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	history := chat.WithSystemPrompt(req.Messages, chat.SystemPrompt)

	ctx, cancel := context.WithTimeout(r.Context(), g.config.Model.RequestTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	stream, err := g.completer.Complete(ctx, history)
	if err != nil {
		g.logger.Warn("upstream call failed", "error", err)
		g.writeSSEEvent(w, "error", map[string]string{"error": turnError(ctx, err)})
		flusher.Flush()
		return
	}

	var fragments []string
	relayErr := drainRelay(ctx, relay(ctx, stream), func(text string) {
		fragments = append(fragments, text)
		g.writeSSEEvent(w, "text", map[string]string{"text": text})
		flusher.Flush()
	})
	if relayErr != nil {
		g.logger.Warn("turn failed", "error", relayErr)
		g.writeSSEEvent(w, "error", map[string]string{"error": turnError(ctx, relayErr)})
		flusher.Flush()
		return
	}

	reply := chat.JoinText(fragments)
	g.recordTurn(req, reply)

	g.writeSSEEvent(w, "done", map[string]string{"full_response": reply})
	flusher.Flush()
}

// turnError maps a failed turn to the message sent on the error event. The
// deadline case is called out so the client can tell a stall from a refusal.
func turnError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "upstream call exceeded the time budget"
	}
	return err.Error()
}

// recordTurn persists the completed turn when the client opted in with a
// session ID. Audit failures are logged, never surfaced to the client.
func (g *Gateway) recordTurn(req *ChatRequest, reply string) {
	if req.SessionID == "" {
		return
	}

	userText := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == chat.RoleUser {
			userText = req.Messages[i].Content
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := g.store.SaveTurn(ctx, &store.TurnRecord{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		UserText:    userText,
		ReplyText:   reply,
		Model:       g.config.Model.Model,
		CompletedAt: time.Now(),
	})
	if err != nil {
		g.logger.Error("failed to record turn", "session_id", req.SessionID, "error", err)
	}
}

// handleQuickQuestions handles GET /api/quick-questions requests. The
// strings are offered to prefill the client's input field; submitting one is
// always a user action.
func (g *Gateway) handleQuickQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g.writeJSON(w, http.StatusOK, QuickQuestionsResponse{Questions: responder.QuickQuestions})
}

// parseChatRequest parses and validates a ChatRequest from the given reader.
func parseChatRequest(r io.Reader) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if req.Messages == nil {
		return nil, errors.New("messages is required")
	}
	if err := chat.ValidateHistory(req.Messages); err != nil {
		return nil, err
	}

	return &req, nil
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given status code.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}
