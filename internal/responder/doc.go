// Package responder implements the keyword-matching fallback that answers
// common insurance questions without contacting the completion service.
package responder
