package mail

import (
	"context"
)

// Message is one rendered email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Result is the provider's verdict for one message of a batch.
type Result struct {
	To       string
	Accepted bool
	Err      error
}

// BatchResult holds per-message results, in the order the messages were given.
type BatchResult struct {
	Results []Result
}

// Accepted returns the addresses the provider accepted.
func (r BatchResult) Accepted() []string {
	out := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Accepted {
			out = append(out, res.To)
		}
	}
	return out
}

// Rejected returns the results the provider refused.
func (r BatchResult) Rejected() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Accepted {
			out = append(out, res)
		}
	}
	return out
}

// Sender defines an interface for delivering a batch of emails in one
// provider call. A returned error means the whole batch failed; per-message
// refusals are reported in BatchResult instead.
type Sender interface {
	// Ready reports a configuration problem that prevents any send.
	Ready() error
	SendBatch(ctx context.Context, msgs []Message) (BatchResult, error)
}
