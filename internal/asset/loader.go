package asset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
)

// MaxAssetBytes caps how much of one asset is read.
const MaxAssetBytes = 32 << 20

// ErrLoadSuperseded is the result of a load replaced by a newer one for the
// same key.
var ErrLoadSuperseded = errors.New("asset load superseded")

// Result is a finished load. Meta is whatever the caller passed to Load.
type Result struct {
	Key   string
	Ref   string
	Meta  any
	Image *image.RGBA
	Err   error
}

// Task is one in-flight load.
type Task struct {
	key    string
	ref    string
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// Cancel aborts the load. A cancelled load still completes, with an error.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the load has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the load finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (*image.RGBA, error) {
	select {
	case <-t.done:
		return t.result.Image, t.result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loader fetches and decodes assets in the background. Finished loads are
// queued until the owner drains them on its own goroutine. Starting a load
// for a key that is still loading supersedes the older load.
type Loader struct {
	fetcher Fetcher
	maxSide int
	logger  *slog.Logger

	mu       sync.Mutex
	seq      uint64
	latest   map[string]uint64
	inflight map[string]*Task
	queue    []Result
	ready    chan struct{}
}

// NewLoader creates a loader. Decoded images larger than maxSide are scaled
// down; a nil logger means slog.Default().
func NewLoader(f Fetcher, maxSide int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fetcher:  f,
		maxSide:  maxSide,
		logger:   logger,
		latest:   make(map[string]uint64),
		inflight: make(map[string]*Task),
		ready:    make(chan struct{}, 1),
	}
}

// Load starts loading ref under key.
func (l *Loader) Load(ctx context.Context, key, ref string, meta any) *Task {
	ctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	l.seq++
	t := &Task{key: key, ref: ref, seq: l.seq, cancel: cancel, done: make(chan struct{})}
	if prev, ok := l.inflight[key]; ok {
		l.logger.Debug("superseding asset load", "key", key, "ref", prev.ref)
		prev.cancel()
	}
	l.latest[key] = t.seq
	l.inflight[key] = t
	l.mu.Unlock()

	go l.run(ctx, t, meta)
	return t
}

func (l *Loader) run(ctx context.Context, t *Task, meta any) {
	defer t.cancel()
	img, err := l.fetch(ctx, t.ref)

	l.mu.Lock()
	current := l.latest[t.key] == t.seq
	if current {
		delete(l.inflight, t.key)
		delete(l.latest, t.key)
	} else {
		img, err = nil, ErrLoadSuperseded
	}
	t.result = Result{Key: t.key, Ref: t.ref, Meta: meta, Image: img, Err: err}
	if current {
		l.queue = append(l.queue, t.result)
	}
	l.mu.Unlock()

	if current {
		switch {
		case errors.Is(err, context.Canceled):
			l.logger.Debug("asset load cancelled", "key", t.key, "ref", t.ref)
		case err != nil:
			l.logger.Warn("asset load failed", "key", t.key, "ref", t.ref, "error", err)
		}
		select {
		case l.ready <- struct{}{}:
		default:
		}
	}
	close(t.done)
}

func (l *Loader) fetch(ctx context.Context, ref string) (*image.RGBA, error) {
	rc, err := l.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, _, err := Decode(io.LimitReader(rc, MaxAssetBytes), ref)
	if err != nil {
		return nil, fmt.Errorf("asset: decode %s: %w", ref, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Normalize(img, l.maxSide), nil
}

// Ready receives a value whenever new results are queued.
func (l *Loader) Ready() <-chan struct{} {
	return l.ready
}

// Drain returns the finished loads in completion order and empties the queue.
func (l *Loader) Drain() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.queue
	l.queue = nil
	return out
}

// Pending returns the number of loads still running.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}

// Wait blocks until no load is running or ctx ends.
func (l *Loader) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		tasks := make([]*Task, 0, len(l.inflight))
		for _, t := range l.inflight {
			tasks = append(tasks, t)
		}
		l.mu.Unlock()

		if len(tasks) == 0 {
			return nil
		}
		for _, t := range tasks {
			select {
			case <-t.done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
