// Package reconcile replaces a profile's persisted medications with the
// in-memory list, enriching every record on the way in.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"medtrack/internal/apperr"
	"medtrack/internal/logging"
	"medtrack/internal/medication"
	"medtrack/internal/store"
	"medtrack/internal/task"
)

// ErrReconcileInProgress is wrapped in the Conflict error returned when the
// profile is already being reconciled.
var ErrReconcileInProgress = errors.New("reconciliation already in progress for this profile")

// Enricher fetches the description for a medication name.
type Enricher interface {
	FetchDescription(ctx context.Context, name string) (string, error)
}

// Handle is the part of a profile store a reconciliation writes through.
type Handle interface {
	Path() string
	Begin(ctx context.Context) (*store.Tx, error)
}

// Opener opens a fresh handle on an existing profile by name.
type Opener interface {
	OpenExisting(name string) (*store.ProfileStore, error)
}

// Engine runs reconciliations. At most one runs per profile at a time;
// different profiles proceed in parallel.
type Engine struct {
	enricher Enricher

	mu     sync.Mutex
	active map[string]struct{}
}

// NewEngine creates an Engine that enriches through enricher.
func NewEngine(enricher Enricher) *Engine {
	return &Engine{
		enricher: enricher,
		active:   make(map[string]struct{}),
	}
}

// Busy reports whether a reconciliation is running for the profile at path.
func (e *Engine) Busy(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[gateKey(path)]
	return ok
}

func gateKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (e *Engine) acquire(path string) (release func(), ok bool) {
	key := gateKey(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[key]; busy {
		return nil, false
	}
	e.active[key] = struct{}{}
	return func() {
		e.mu.Lock()
		delete(e.active, key)
		e.mu.Unlock()
	}, true
}

// Reconcile makes the profile's table hold exactly records, in order, each
// with a freshly fetched description. The clear and every insert share one
// transaction that commits only after the last record is written; any
// failure leaves the table as it was. records is not modified; the enriched
// copy is returned.
func (e *Engine) Reconcile(ctx context.Context, h Handle, records []medication.Record) (out []medication.Record, err error) {
	const op = "reconcile"

	release, ok := e.acquire(h.Path())
	if !ok {
		logging.ReconcileWarn("rejected: %s is already reconciling", h.Path())
		return nil, apperr.Conflict(op, ErrReconcileInProgress)
	}
	defer release()

	timer := logging.StartTimer(logging.CategoryReconcile, "Reconcile")
	defer timer.Stop()

	tx, err := h.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.ReconcileWarn("rollback failed: %v", rbErr)
		}
		if err != nil {
			logging.ReconcileWarn("%s rolled back: %v", h.Path(), err)
		}
	}()

	if err := tx.Clear(ctx); err != nil {
		return nil, err
	}

	out = medication.Clone(records)
	for i := range out {
		desc, err := e.enricher.FetchDescription(ctx, out[i].Name)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindUnknown {
				err = apperr.Service("fetch description", err)
			}
			return nil, fmt.Errorf("record %d (%s): %w", i+1, out[i].Name, err)
		}
		out[i].Description = desc

		if err := tx.Insert(ctx, out[i]); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i+1, out[i].Name, err)
		}
		logging.ReconcileDebug("wrote %s (%d/%d)", out[i].Name, i+1, len(out))
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	logging.Reconcile("%s reconciled: %d records", h.Path(), len(out))
	return out, nil
}

// Submit runs a reconciliation of profile as one unit of work on r. The work
// opens its own handle and reconciles a snapshot of records; onDone receives
// the enriched copy on the consumer goroutine. A profile that no longer
// exists when the work runs fails with store.ErrProfileNotFound.
func (e *Engine) Submit(r *task.Runner, opener Opener, profile string, records []medication.Record, onDone func([]medication.Record), onErr func(error)) (task.ID, error) {
	snapshot := medication.Clone(records)
	return task.Go(r, "reconcile "+profile, func(ctx context.Context) ([]medication.Record, error) {
		h, err := opener.OpenExisting(profile)
		if err != nil {
			return nil, err
		}
		defer h.Close()
		return e.Reconcile(ctx, h, snapshot)
	}, onDone, onErr)
}
