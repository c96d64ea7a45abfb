package notify

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const maxConcurrentDeliveries = 4

// Sink is a notification destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, message string) error
}

// DeliveryError reports a sink that did not accept a message. Status is the
// HTTP status when the sink answered, zero otherwise.
type DeliveryError struct {
	Sink   string
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("deliver to %s (status %d): %v", e.Sink, e.Status, e.Err)
	}
	return fmt.Sprintf("deliver to %s: %v", e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Outcome is the delivery result for one sink. Err is nil on success.
type Outcome struct {
	Sink string
	Err  error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Notifier fans a message out to its sinks.
type Notifier struct {
	sinks []Sink
}

func New(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

func (n *Notifier) Len() int {
	if n == nil {
		return 0
	}
	return len(n.sinks)
}

// Notify delivers message to every sink and waits for all of them. Outcomes
// are returned in sink order; a failing sink never prevents the others from
// being attempted.
func (n *Notifier) Notify(ctx context.Context, message string) []Outcome {
	if n.Len() == 0 {
		return nil
	}

	outcomes := make([]Outcome, len(n.sinks))
	var g errgroup.Group
	g.SetLimit(maxConcurrentDeliveries)
	for i, sink := range n.sinks {
		g.Go(func() error {
			outcomes[i] = Outcome{Sink: sink.Name(), Err: deliver(ctx, sink, message)}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func deliver(ctx context.Context, sink Sink, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{Sink: sink.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return sink.Deliver(ctx, message)
}

// Failed counts outcomes with an error.
func Failed(outcomes []Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	return failed
}
