//go:build !linux

package main

import (
	"context"
	"os"
)

// readInputEventsMulti falls back to one blocking reader per device.
func readInputEventsMulti(ctx context.Context, files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
	<-ctx.Done()
}
