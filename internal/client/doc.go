// ABOUTME: Package doc for the gateway HTTP client
// ABOUTME: Used by the terminal client to run conversation turns remotely

// Package client provides an HTTP client for the assist-gateway API.
//
// The client posts the full conversation history to the gateway's chat
// endpoint and reads the server-sent reply stream, delivering text
// fragments as they arrive. It satisfies the session Replier contract,
// so the message-log state machine drives remote turns the same way it
// drives local ones.
package client
