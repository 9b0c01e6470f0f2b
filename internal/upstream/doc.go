// Package upstream talks to the hosted completion service over its
// streaming Messages API and exposes the reply as a pull-based fragment
// stream. One attempt per turn; the gateway never retries a failed call.
package upstream
