// Package notify sends urgent SMS alerts through an ordered chain of
// providers, falling through to the next on any failure.
package notify

import (
	"context"
	"log"
	"time"
)

// Sender is one SMS delivery channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, number, text string) error
}

// Channel wraps a Sender with its dispatch mode. An async channel is
// fire-and-forget: it is spawned in the background, reported as "unknown" and
// never decides the chain's outcome.
type Channel struct {
	Sender Sender
	Async  bool
}

type Attempt struct {
	Channel string `json:"channel"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Result records one pass through the chain for a single number.
type Result struct {
	Number    string    `json:"number"`
	Delivered bool      `json:"delivered"`
	Channel   string    `json:"channel,omitempty"`
	Attempts  []Attempt `json:"attempts"`
}

// Dispatcher walks the ordered channel list, stopping at the first
// synchronous success. One pass per dispatch, no retries.
type Dispatcher struct {
	chain   []Channel
	timeout time.Duration
}

func NewDispatcher(timeout time.Duration, chain ...Channel) *Dispatcher {
	return &Dispatcher{chain: chain, timeout: timeout}
}

// Dispatch sends text to one number. Every channel attempt is bounded by the
// dispatcher timeout; a failing channel is logged and the next one tried.
func (d *Dispatcher) Dispatch(ctx context.Context, number, text string) Result {
	res := Result{Number: number}
	for _, ch := range d.chain {
		name := ch.Sender.Name()
		if ch.Async {
			go d.sendAsync(ch.Sender, number, text)
			res.Attempts = append(res.Attempts, Attempt{Channel: name, Outcome: "unknown"})
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := ch.Sender.Send(cctx, number, text)
		cancel()
		if err != nil {
			log.Printf("notify: %s to %s failed: %v", name, number, err)
			res.Attempts = append(res.Attempts, Attempt{Channel: name, Outcome: "failed", Error: err.Error()})
			continue
		}
		res.Attempts = append(res.Attempts, Attempt{Channel: name, Outcome: "sent"})
		res.Delivered = true
		res.Channel = name
		return res
	}
	return res
}

// DispatchAll runs the chain once per recipient.
func (d *Dispatcher) DispatchAll(ctx context.Context, numbers []string, text string) []Result {
	results := make([]Result, 0, len(numbers))
	for _, number := range numbers {
		results = append(results, d.Dispatch(ctx, number, text))
	}
	return results
}

func (d *Dispatcher) sendAsync(s Sender, number, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := s.Send(ctx, number, text); err != nil {
		log.Printf("notify: %s to %s failed: %v", s.Name(), number, err)
	}
}
