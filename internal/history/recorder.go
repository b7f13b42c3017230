package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/attrcycle/internal/cycle"
)

// writeTimeout bounds a single insert.
const writeTimeout = 2 * time.Second

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder is a cycle.Observer that queues events and writes them from
// its own goroutine. ObserveCycle never blocks; when the queue is full
// the event is dropped and counted.
type Recorder struct {
	repo   Repository
	clock  clockwork.Clock
	logger Logger

	events  chan Entry
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// NewRecorder creates a recorder with room for buffer queued events.
// A nil clock means the real clock.
func NewRecorder(repo Repository, buffer int, clock clockwork.Clock) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{
		repo:   repo,
		clock:  clock,
		logger: noopLogger{},
		events: make(chan Entry, buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for write failures.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// ObserveCycle implements cycle.Observer.
func (r *Recorder) ObserveCycle(e cycle.Event) {
	entry := Entry{
		Cycler:    e.ID,
		Kind:      string(e.Kind),
		Index:     e.Index,
		Value:     e.Value,
		CreatedAt: r.clock.Now().UTC(),
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}

	select {
	case r.events <- entry:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Start runs the writer until Close.
func (r *Recorder) Start() {
	go r.run()
}

// Close stops the writer after draining queued events. Safe to call more
// than once, but only after Start.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case e := <-r.events:
			r.write(e)
		case <-r.stop:
			for {
				select {
				case e := <-r.events:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &e); err != nil {
		r.logger.Warn("recording cycle event failed", "cycler", e.Cycler, "kind", e.Kind, "error", err)
	}
}
