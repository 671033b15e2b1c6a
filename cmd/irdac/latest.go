package main

import "context"

// latestWins is a one-slot mailbox. Submit never blocks: a value that has not
// been picked up yet is replaced. Used for sinks where only the newest state
// matters (DAC level, display frame).
type latestWins[T any] struct {
	ch chan T
}

func newLatestWins[T any]() *latestWins[T] {
	return &latestWins[T]{ch: make(chan T, 1)}
}

func (l *latestWins[T]) Submit(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// Run calls fn for each value until ctx is canceled.
func (l *latestWins[T]) Run(ctx context.Context, fn func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-l.ch:
			fn(v)
		}
	}
}
