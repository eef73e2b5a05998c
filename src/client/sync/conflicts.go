package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"monii/src/client/queue"
)

// The conflict surface is a read/command facade over the queue and the
// orchestrator: it holds no state of its own.

// Classify partitions intents by age: fresh (within StaleAfter) and stale,
// the conflicts that need a user decision.
func (o *Orchestrator) Classify(intents []queue.PendingIntent, now time.Time) (fresh, stale []queue.PendingIntent) {
	for _, intent := range intents {
		if intent.Age(now) > o.opts.StaleAfter {
			stale = append(stale, intent)
		} else {
			fresh = append(fresh, intent)
		}
	}
	return fresh, stale
}

// ResolveAll replays every listed intent through the normal apply path and
// aggregates outcomes. It returns ErrDrainInProgress when a drain cycle is
// already running.
func (o *Orchestrator) ResolveAll(ctx context.Context, intents []queue.PendingIntent) (applied, failed int, err error) {
	if !o.guard.TryLock() {
		return 0, 0, ErrDrainInProgress
	}
	defer o.guard.Unlock()

	for _, intent := range intents {
		if ctx.Err() != nil {
			return applied, failed, ctx.Err()
		}
		if o.applyOne(ctx, intent) == outcomeApplied {
			applied++
		} else {
			failed++
		}
	}
	o.reportStatus()
	return applied, failed, nil
}

// DiscardAll removes every listed intent without applying it. This is a
// user-acknowledged data-loss action, logged as such to keep it apart from
// automatic drops.
func (o *Orchestrator) DiscardAll(intents []queue.PendingIntent) (int, error) {
	var errs []error
	discarded := 0
	for _, intent := range intents {
		if err := o.queue.Remove(intent.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		discarded++
		log.Printf("INFO: Intent %s discarded by user decision (age %s, %d retries)",
			intent.ID, intent.Age(o.now()).Round(time.Second), intent.RetryCount)
	}
	o.reportStatus()
	return discarded, errors.Join(errs...)
}
