// Package changelog reads the durable StateChange log the statemachine
// package writes, and manages the two kinds of position tracked over it:
// the Scheduler's single resumable cursor, and per-subscriber offsets
// for the content stream's at-least-once delivery.
package changelog

import (
	"context"
	"fmt"
	"time"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/store"
)

// DefaultScanLimit bounds a single Drain batch when the caller does not
// specify one.
const DefaultScanLimit = 256

// Reader reads the StateChange log through a Store, tracking either the
// Scheduler's cursor or a named subscriber's offset depending on which
// methods are called.
type Reader struct {
	store store.Store
}

// New wraps a Store as a Reader.
func New(s store.Store) *Reader {
	return &Reader{store: s}
}

// Drain returns up to limit unprocessed StateChanges starting at
// fromID+1 (fromID is exclusive, matching the Scheduler cursor's
// last-fully-applied semantics). limit <= 0 uses DefaultScanLimit.
func (r *Reader) Drain(ctx context.Context, fromID uint64, limit int) (store.Page[coordinator.StateChange], error) {
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	page, err := r.store.ScanStateChanges(ctx, fromID+1, limit)
	if err != nil {
		return store.Page[coordinator.StateChange]{}, fmt.Errorf("changelog: drain: %w", err)
	}
	return page, nil
}

// SchedulerCursor returns the Scheduler's last-committed position, 0 if
// it has never advanced.
func (r *Reader) SchedulerCursor(ctx context.Context) (uint64, error) {
	id, err := r.store.GetSchedulerCursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("changelog: scheduler cursor: %w", err)
	}
	return id, nil
}

// AdvanceSchedulerCursor persists the Scheduler's new position after it
// has fully derived every effect of the changes up to and including id.
// Callers must call this only after MarkProcessed has recorded the
// outcome of every change in the batch, so a crash between the two never
// loses a change: on restart the Scheduler resumes from the old cursor
// and re-derives, which MarkProcessed's per-change idempotence tolerates.
func (r *Reader) AdvanceSchedulerCursor(ctx context.Context, id uint64) error {
	if err := r.store.SetSchedulerCursor(ctx, id); err != nil {
		return fmt.Errorf("changelog: advance scheduler cursor: %w", err)
	}
	return nil
}

// MarkProcessed records that a change has been fully handled, optionally
// with a derivation error (e.g. a router activated an undeclared target,
// or a StartFn no longer exists on a since-edited graph). A non-empty
// derivationErr does not block the cursor from advancing past id: a
// change that cannot be derived is still processed, just unsuccessfully.
func (r *Reader) MarkProcessed(ctx context.Context, id uint64, derivationErr string) error {
	if err := r.store.MarkStateChangeProcessed(ctx, id, derivationErr); err != nil {
		return fmt.Errorf("changelog: mark processed: %w", err)
	}
	return nil
}

// Prune discards state changes older than id whose downstream effects
// have already been fully derived and delivered to every content-stream
// subscriber. Callers are responsible for computing a safe id (the
// minimum of the Scheduler cursor and every subscriber offset).
func (r *Reader) Prune(ctx context.Context, id uint64) (int, error) {
	n, err := r.store.PruneStateChangesBefore(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("changelog: prune: %w", err)
	}
	return n, nil
}

// SubscriberOffset returns key's last-acknowledged position and whether
// it has ever been set; a fresh subscriber gets ok=false and should
// start from the log's current tail rather than replaying all history,
// unless it explicitly requests a full replay.
func (r *Reader) SubscriberOffset(ctx context.Context, key string) (uint64, bool, error) {
	id, ok, err := r.store.GetStreamOffset(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("changelog: subscriber offset: %w", err)
	}
	return id, ok, nil
}

// AdvanceSubscriberOffset records that key has consumed up through id.
// Offsets only ever move forward; callers must not call this with an id
// smaller than the previously recorded offset, since streamserver relies
// on monotonicity to detect a misbehaving client cursor.
func (r *Reader) AdvanceSubscriberOffset(ctx context.Context, key string, id uint64) error {
	if err := r.store.SetStreamOffset(ctx, key, id); err != nil {
		return fmt.Errorf("changelog: advance subscriber offset: %w", err)
	}
	return nil
}

// SafePruneID returns the id below which every tracked position (the
// Scheduler cursor and all known subscriber offsets) has already
// consumed, i.e. the highest id that Prune can safely discard through.
// Returns ok=false if there are no subscribers yet, since pruning
// against the Scheduler cursor alone would strand a not-yet-registered
// subscriber that intends to replay from the start.
func SafePruneID(schedulerCursor uint64, subscriberOffsets []uint64) (uint64, bool) {
	if len(subscriberOffsets) == 0 {
		return 0, false
	}
	safe := schedulerCursor
	for _, off := range subscriberOffsets {
		if off < safe {
			safe = off
		}
	}
	return safe, true
}

// PruneLoop periodically discards state changes below the safe prune
// point (SafePruneID against the current Scheduler cursor and every
// tracked subscriber offset), retaining at least the most recent
// retention entries below that point for cmd/coordinator inspect and
// post-hoc debugging. retention <= 0 disables pruning entirely. Mirrors
// gateway.Server.Sweep's ticker-loop shape: runs until ctx is cancelled,
// logging rather than aborting on a failed pass.
func (r *Reader) PruneLoop(ctx context.Context, interval time.Duration, retention int, logger coordinator.Logger) error {
	if retention <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = coordinator.NewNoopLogger()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.pruneOnce(ctx, retention)
			if err != nil {
				logger.Error(ctx, "change log prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "change log pruned", "count", n)
			}
		}
	}
}

func (r *Reader) pruneOnce(ctx context.Context, retention int) (int, error) {
	cursor, err := r.SchedulerCursor(ctx)
	if err != nil {
		return 0, err
	}
	offsets, err := r.store.ListStreamOffsets(ctx)
	if err != nil {
		return 0, fmt.Errorf("changelog: list stream offsets: %w", err)
	}
	safe, ok := SafePruneID(cursor, offsets)
	if !ok || safe <= uint64(retention) {
		return 0, nil
	}
	return r.Prune(ctx, safe-uint64(retention))
}
