package watch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/ter/internal/journal"
	"github.com/starford/ter/internal/logfields"
	"github.com/starford/ter/internal/metrics"
	"github.com/starford/ter/internal/models"
)

// Rebuilder performs a full site build. Configuration is bound at construction.
type Rebuilder interface {
	Rebuild(ctx context.Context, opts models.BuildOptions) error
}

// Reloader is notified after every successful rebuild.
type Reloader interface {
	RequestReload()
}

// Journal records rebuild outcomes.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Watcher is the single consumer of filesystem events.
type Watcher struct {
	filter    Filter
	rebuilder Rebuilder
	reloader  Reloader

	journal  Journal
	metrics  *metrics.Recorder
	logger   *slog.Logger
	coalesce bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithJournal records every rebuild in j.
func WithJournal(j Journal) Option {
	return func(w *Watcher) { w.journal = j }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(w *Watcher) { w.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithCoalesce folds events already queued when a rebuild finishes into the
// next rebuild. By default each surviving event gets its own rebuild.
func WithCoalesce(on bool) Option {
	return func(w *Watcher) { w.coalesce = on }
}

// New returns a Watcher driving rebuilder and reloader.
func New(filter Filter, rebuilder Rebuilder, reloader Reloader, opts ...Option) *Watcher {
	w := &Watcher{
		filter:    filter,
		rebuilder: rebuilder,
		reloader:  reloader,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes events until ctx is cancelled or events is closed. Rebuilds
// are strictly serialized; a failed rebuild is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, events <-chan Event) error {
	w.logger.Info("watcher: started",
		slog.Any("roots", w.filter.Roots),
		slog.Bool("coalesce", w.coalesce),
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-events:
			if !ok {
				w.logger.Info("watcher: event source closed")
				return nil
			}
			if !w.accept(ev) {
				continue
			}
			batch := []Event{ev}
			if w.coalesce {
				batch = w.drain(events, batch)
			}
			w.rebuild(ctx, batch)
		}
	}
}

func (w *Watcher) accept(ev Event) bool {
	if reason := w.filter.Check(ev); reason != "" {
		w.metrics.IncEventFiltered(reason)
		w.logger.Debug("watcher: event skipped",
			logfields.Kind(string(ev.Kind)),
			logfields.Paths(ev.Paths),
			slog.String("reason", reason),
		)
		return false
	}
	return true
}

// drain appends every accepted event that is already queued.
func (w *Watcher) drain(events <-chan Event, batch []Event) []Event {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return batch
			}
			if w.accept(ev) {
				batch = append(batch, ev)
			}
		default:
			return batch
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context, batch []Event) {
	kind := batch[0].Kind
	var paths []string
	for _, ev := range batch {
		paths = append(paths, ev.Paths...)
	}

	w.logger.Info("watcher: change",
		logfields.Kind(string(kind)),
		logfields.Paths(paths),
		slog.Int("events", len(batch)),
	)

	start := time.Now()
	err := w.rebuilder.Rebuild(ctx, models.BuildOptions{Quiet: true, IncludeRefresh: true})
	elapsed := time.Since(start)

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return
	}

	w.metrics.ObserveRebuild(elapsed, err)
	w.record(ctx, start, elapsed, kind, paths, err)

	if err != nil {
		w.logger.Error("watcher: rebuild failed",
			logfields.Paths(paths),
			logfields.Error(err),
		)
		return
	}

	w.logger.Debug("watcher: rebuilt", logfields.Duration(elapsed))
	w.reloader.RequestReload()
}

func (w *Watcher) record(ctx context.Context, start time.Time, elapsed time.Duration, kind Kind, paths []string, rebuildErr error) {
	if w.journal == nil {
		return
	}
	e := journal.Entry{
		StartedAt:  start,
		DurationMS: elapsed.Milliseconds(),
		Kind:       string(kind),
		Paths:      paths,
	}
	if rebuildErr != nil {
		e.Error = rebuildErr.Error()
	}
	if err := w.journal.Record(ctx, e); err != nil {
		w.logger.Warn("watcher: journal record failed", logfields.Error(err))
	}
}
