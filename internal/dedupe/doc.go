// Package dedupe provides a TTL-based cache of applied action IDs.
//
// Offline clients queue actions locally and replay them when connectivity
// returns. Uploads retry, so the same action can reach the gateway more than
// once. The cache records each applied action ID for a TTL window and the
// replay path uses CheckAndMark to apply every action at most once.
package dedupe
