// Package outbox replays actions that clients queued while offline.
//
// Each action is a tagged envelope: a client-assigned ID, a kind from a
// closed set, and a payload whose schema is fixed per kind. Replay decodes
// and applies each kind explicitly, so adding a kind means adding a handler,
// and an unrecognized kind is rejected rather than ignored.
//
// Clients retry uploads after connectivity loss. The replayer absorbs
// retries with a TTL dedupe cache keyed on the action ID, backed by the
// store's ID uniqueness for retries that outlive the cache window.
package outbox
