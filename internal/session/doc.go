// Package session implements the client-side conversation state machine.
//
// A Session owns one append-only message log and cycles idle, awaiting-reply,
// idle per turn. Submits are serialized: while a reply is pending, further
// submits are rejected instead of racing to append out of order. The reply
// itself comes from a pluggable Replier, either the streaming gateway client
// or the local keyword responder.
package session
