// Package sync drains the offline mutation queue against the ledger API.
// One drain cycle applies every queued intent in creation order; failures
// are isolated per intent and bounded by a retry ceiling, and nothing is
// dropped without an explicit terminal notice.
package sync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"monii/src/client/queue"
)

// ErrDrainInProgress is returned by user-initiated triggers that arrive
// while a drain cycle is already running.
var ErrDrainInProgress = errors.New("drain already in progress")

// TerminalFailure is the user-visible notice emitted when an intent is
// dropped: data loss is explicit, never silent.
type TerminalFailure struct {
	Intent queue.PendingIntent
	Reason string
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeRetrying
	outcomeDropped
)

type Options struct {
	// MaxRetries is the ceiling on failed replay attempts per intent.
	MaxRetries int
	// CallTimeout bounds each per-intent network call.
	CallTimeout time.Duration
	// PollInterval is the connectivity poll cadence.
	PollInterval time.Duration
	// StatusInterval is the conflict re-check cadence.
	StatusInterval time.Duration
	// StaleAfter is the age past which an intent is a conflict.
	StaleAfter time.Duration

	// Online probes connectivity; used by the poll ticker.
	Online func(ctx context.Context) bool
	// OnTerminalFailure observes dropped intents.
	OnTerminalFailure func(TerminalFailure)
	// OnQueueStatus observes the pending and stale counts.
	OnQueueStatus func(pending, stale int)
}

func (o *Options) fillDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.StatusInterval <= 0 {
		o.StatusInterval = 5 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 24 * time.Hour
	}
}

// Orchestrator serializes every drain through one guard mutex: a trigger
// arriving mid-cycle is a no-op instead of a duplicate submission.
type Orchestrator struct {
	queue   *queue.Queue
	applier Applier
	opts    Options

	guard sync.Mutex
	now   func() time.Time
}

func New(q *queue.Queue, applier Applier, opts Options) *Orchestrator {
	opts.fillDefaults()
	return &Orchestrator{queue: q, applier: applier, opts: opts, now: time.Now}
}

// Run watches connectivity and timers until ctx is done. online carries
// offline/online transitions from the host; a rising edge triggers a drain,
// as does the periodic poll while connected.
func (o *Orchestrator) Run(ctx context.Context, online <-chan bool) {
	poll := time.NewTicker(o.opts.PollInterval)
	defer poll.Stop()
	status := time.NewTicker(o.opts.StatusInterval)
	defer status.Stop()

	wasOnline := false
	if o.opts.Online != nil {
		wasOnline = o.opts.Online(ctx)
	}
	if wasOnline {
		o.drain(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-online:
			if !ok {
				online = nil
				continue
			}
			if up && !wasOnline {
				log.Printf("INFO: Connectivity restored, draining %d pending intents", o.queue.Len())
				o.drain(ctx)
			}
			wasOnline = up
		case <-poll.C:
			if o.opts.Online == nil {
				continue
			}
			up := o.opts.Online(ctx)
			if up && (!wasOnline || o.queue.Len() > 0) {
				o.drain(ctx)
			}
			wasOnline = up
		case <-status.C:
			o.reportStatus()
		}
	}
}

// Drain runs one cycle now. It is the explicit "resolve now" trigger; a
// cycle already in progress makes it a no-op.
func (o *Orchestrator) Drain(ctx context.Context) error {
	if !o.guard.TryLock() {
		return ErrDrainInProgress
	}
	defer o.guard.Unlock()
	return o.drainLocked(ctx)
}

func (o *Orchestrator) drain(ctx context.Context) {
	if err := o.Drain(ctx); err != nil && !errors.Is(err, ErrDrainInProgress) {
		log.Printf("ERROR: Drain cycle failed: %v", err)
	}
}

// drainLocked applies the current queue snapshot in creation order. A
// failing intent never stalls the ones behind it.
func (o *Orchestrator) drainLocked(ctx context.Context) error {
	intents, err := o.queue.List()
	if err != nil {
		// Storage failure: do not assume the queue is empty.
		return err
	}

	for _, intent := range intents {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.applyOne(ctx, intent)
	}

	o.reportStatus()
	return nil
}

// applyOne replays a single intent. On success the intent is removed; a
// permanent rejection drops it immediately, a transient failure leaves it
// queued until the retry ceiling removes it.
func (o *Orchestrator) applyOne(ctx context.Context, intent queue.PendingIntent) outcome {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	var err error
	switch intent.Kind {
	case queue.KindCreateTransaction:
		_, err = o.applier.CreateTransaction(callCtx, intent)
	case queue.KindUpdateTransaction:
		_, err = o.applier.UpdateTransaction(callCtx, intent)
	case queue.KindDeleteTransaction:
		err = o.applier.DeleteTransaction(callCtx, intent)
	default:
		err = &ApplyError{Permanent: true, Err: errors.New("unknown intent kind " + string(intent.Kind))}
	}

	if err == nil {
		if rerr := o.queue.Remove(intent.ID); rerr != nil {
			log.Printf("ERROR: Failed to remove applied intent %s: %v", intent.ID, rerr)
		}
		return outcomeApplied
	}

	if IsPermanent(err) {
		log.Printf("ERROR: Intent %s rejected by server, dropping: %v", intent.ID, err)
		o.drop(intent, "rejected by server: "+err.Error())
		return outcomeDropped
	}

	retries, rerr := o.queue.IncrementRetry(intent.ID)
	if rerr != nil {
		log.Printf("ERROR: Failed to record retry for intent %s: %v", intent.ID, rerr)
		return outcomeRetrying
	}
	log.Printf("ERROR: Intent %s failed attempt %d/%d: %v", intent.ID, retries, o.opts.MaxRetries, err)

	if retries >= o.opts.MaxRetries {
		o.drop(intent, "retry limit reached")
		return outcomeDropped
	}
	return outcomeRetrying
}

func (o *Orchestrator) drop(intent queue.PendingIntent, reason string) {
	if err := o.queue.Remove(intent.ID); err != nil {
		log.Printf("ERROR: Failed to remove dropped intent %s: %v", intent.ID, err)
		return
	}
	if o.opts.OnTerminalFailure != nil {
		o.opts.OnTerminalFailure(TerminalFailure{Intent: intent, Reason: reason})
	}
}

// reportStatus derives the pending/conflict indicator from queue state.
func (o *Orchestrator) reportStatus() {
	if o.opts.OnQueueStatus == nil {
		return
	}
	intents, err := o.queue.List()
	if err != nil {
		log.Printf("ERROR: Failed to read queue for status report: %v", err)
		return
	}
	_, stale := o.Classify(intents, o.now())
	o.opts.OnQueueStatus(len(intents), len(stale))
}
