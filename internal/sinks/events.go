package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sentrywall/core/internal/metrics"
)

// EventRecord is one terminal-state record the pipeline orchestrator emits
// per spec.md §4.9: one per BLOCK, CHALLENGE, FINAL_DENY, ORIGIN_DISPATCH,
// or ORIGIN_MISCONFIG.
type EventRecord struct {
	ID         string
	Timestamp  time.Time
	Action     string // BLOCK, CHALLENGE, FINAL_DENY, ORIGIN_DISPATCH, ORIGIN_MISCONFIG
	RuleID     string
	Context    string // "global" or a route id
	RouteHost  string
	IP         string
	UserAgent  string
	Country    string
	ASN        string
	Colo       string
	MetaBlob   map[string]any
	HeaderBlob map[string][]string
}

// EventSink is the external event-log store's contract (spec.md §6). The
// store itself is out of scope; this package owns the interface plus the
// bounded, fire-and-forget adapters the core drives it through.
type EventSink interface {
	Append(ctx context.Context, rec EventRecord) error
}

// WorkerSink is the default EventSink: a bounded per-worker buffer drained
// by a background goroutine. On overflow it drops the oldest buffered
// record rather than blocking the request path, incrementing a counter
// surfaced to Prometheus (spec.md §4.9's back-pressure policy).
type WorkerSink struct {
	backend EventSink
	log     *logrus.Entry

	mu     sync.Mutex
	buf    []EventRecord
	cap    int
	signal chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewWorkerSink starts a background worker draining into backend (or
// logging only, if backend is nil) with a buffer bounded to capacity.
func NewWorkerSink(backend EventSink, capacity int, log *logrus.Entry) *WorkerSink {
	if capacity <= 0 {
		capacity = 1024
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	w := &WorkerSink{
		backend: backend,
		log:     log,
		cap:     capacity,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Append never blocks the request path. A full buffer drops its oldest
// entry to admit rec.
func (w *WorkerSink) Append(_ context.Context, rec EventRecord) error {
	w.mu.Lock()
	if len(w.buf) >= w.cap {
		w.buf = w.buf[1:]
		metrics.IncEventSinkDropped()
	}
	w.buf = append(w.buf, rec)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
	return nil
}

func (w *WorkerSink) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.signal:
			w.drain()
		}
	}
}

func (w *WorkerSink) drain() {
	for {
		w.mu.Lock()
		if len(w.buf) == 0 {
			w.mu.Unlock()
			return
		}
		rec := w.buf[0]
		w.buf = w.buf[1:]
		w.mu.Unlock()

		if w.backend != nil {
			if err := w.backend.Append(context.Background(), rec); err != nil {
				w.log.WithError(err).Warn("event sink backend append failed")
			}
		} else {
			w.log.WithFields(logrus.Fields{
				"action":     rec.Action,
				"rule_id":    rec.RuleID,
				"context":    rec.Context,
				"route_host": rec.RouteHost,
			}).Info("event")
		}
	}
}

// Close stops the background worker. Buffered records not yet drained are
// discarded.
func (w *WorkerSink) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}
