package reconcile

import (
	"context"
	"log"
	"time"
)

// Run polls on a fixed interval until ctx is cancelled. Cycles never
// overlap: the next tick waits for the previous fetch-and-merge to
// finish, so two snapshots cannot interleave into one merge. Manual
// toggles stay responsive throughout; they only take the engine mutex.
//
// Poll failures are logged and skipped; a view one interval stale is
// stale-but-not-wrong.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if err := e.Poll(ctx); err != nil && ctx.Err() == nil {
		log.Printf("attendance poll: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("attendance poll: %v", err)
			}
		}
	}
}
