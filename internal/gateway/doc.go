// Package gateway is the assist-gateway server: the conversation endpoint
// plus the supporting insurance resources.
//
// The conversation endpoint, POST /api/chat, is stateless. The client posts
// its full accumulated history each turn; the gateway validates it, prepends
// the system prompt when the history does not already start with one, calls
// the completion service under a wall-clock budget, and relays the reply to
// the client as Server-Sent Events. Fragments flow through a bounded channel
// between the upstream reader and the response writer, so a disconnected
// client cancels the upstream pull instead of leaking it. A turn either ends
// with a done event carrying the assembled reply or an error event; there is
// no retry.
//
// In demo mode (responder.enabled) the same endpoint answers from the local
// keyword responder with no upstream call.
//
// The remaining routes are conventional JSON: policy, claim, and quote CRUD,
// per-session turn audit, the offline outbox replay endpoint, and the
// quick-question strings. Bearer auth wraps all /api routes when a JWT
// secret is configured.
package gateway
