// ABOUTME: Deterministic keyword-matching responder for demo and offline mode
// ABOUTME: Answers without contacting any external service, with a fixed artificial delay

package responder

import (
	"context"
	"strings"
	"time"
)

// rule pairs a lowercase keyword with its canned response. Rules are held in
// a slice, not a map: the first keyword found in declaration order wins, and
// that order is part of the contract.
type rule struct {
	keyword  string
	response string
}

var rules = []rule{
	{
		keyword: "insurance",
		response: "We offer auto, home, term life, and renters insurance. " +
			"Which product would you like to know more about?",
	},
	{
		keyword: "claim",
		response: "You can file a claim online or by phone. Have your policy " +
			"number, the incident date, and a short description ready. " +
			"Claims are acknowledged within one business day.",
	},
	{
		keyword: "premium",
		response: "Premiums depend on your cover amount, deductible, claims " +
			"history, and location. Bundling policies and staying claim-free " +
			"both earn discounts.",
	},
	{
		keyword: "renewal",
		response: "Policies renew automatically unless cancelled. You'll " +
			"receive a renewal notice with your new premium 30 days before " +
			"the renewal date.",
	},
}

// clarification is returned when no keyword matches. A miss is not an error.
const clarification = "I'm not sure I follow. Could you rephrase that, or " +
	"would you like me to connect you with a licensed agent?"

// QuickQuestions are literal prompt strings a UI may offer to prefill the
// input field. They are never auto-submitted.
var QuickQuestions = []string{
	"What insurance do I need?",
	"How do I file a claim?",
	"Why did my premium change?",
	"When does my policy renew?",
}

// Respond matches the lowercase-folded input against the keyword rules and
// returns the first matching response, or the generic clarification when
// nothing matches. Pure text to text, deterministic, no I/O.
func Respond(input string) string {
	folded := strings.ToLower(input)
	for _, r := range rules {
		if strings.Contains(folded, r.keyword) {
			return r.response
		}
	}
	return clarification
}

// DefaultDelay simulates network latency before a canned reply is delivered.
const DefaultDelay = 800 * time.Millisecond

// Responder delivers canned replies after a configurable delay. The zero
// delay is valid and useful in tests.
type Responder struct {
	delay time.Duration
}

// New creates a Responder with the given artificial delay. Negative values
// are treated as zero.
func New(delay time.Duration) *Responder {
	if delay < 0 {
		delay = 0
	}
	return &Responder{delay: delay}
}

// Reply waits out the artificial delay, then returns the canned response for
// input. Returns the context error if ctx is cancelled during the delay.
func (r *Responder) Reply(ctx context.Context, input string) (string, error) {
	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return Respond(input), nil
}
