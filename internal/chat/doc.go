// Package chat defines the conversation domain: roles, messages, the
// append-only transcript, and the fixed system prompt shared by the
// gateway and the terminal client.
package chat
