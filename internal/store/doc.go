// Package store provides SQLite-backed persistence for insurance records
// (policies, claims, quotes) and conversation-turn audit entries.
package store
