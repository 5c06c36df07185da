package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"anonchat/backend/internal/models"

	"github.com/cespare/xxhash/v2"
)

// ErrPoolClosed is returned by Submit once the pool is shutting down.
var ErrPoolClosed = errors.New("event pool closed")

// HandleFunc processes one event.
type HandleFunc func(ctx context.Context, ev models.Event) error

// Pool shards events over a fixed set of workers by user. Events of one user are
// handled in arrival order by one worker; different users proceed concurrently.
type Pool struct {
	queues []chan models.Event
	handle HandleFunc
	log    *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

// NewPool creates a pool with size workers, each with a buffer of the given length.
func NewPool(size, buffer int, handle HandleFunc, log *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if log == nil {
		log = slog.Default()
	}

	queues := make([]chan models.Event, size)
	for i := range queues {
		queues[i] = make(chan models.Event, buffer)
	}
	return &Pool{queues: queues, handle: handle, log: log, done: make(chan struct{})}
}

// Submit hands ev to the worker owning its user. It blocks while that worker's
// buffer is full, until ctx is done or the pool closes.
func (p *Pool) Submit(ctx context.Context, ev models.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queues[p.shard(ev.UserID)] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolClosed
	}
}

// Run starts the workers and blocks until ctx is cancelled. Events already accepted
// are drained before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	handleCtx := context.WithoutCancel(ctx)

	for i, q := range p.queues {
		wg.Add(1)
		go func(worker int, q <-chan models.Event) {
			defer wg.Done()
			for ev := range q {
				p.process(handleCtx, worker, ev)
			}
		}(i, q)
	}

	<-ctx.Done()
	p.Close()
	wg.Wait()
	p.log.Info("event pool stopped")
	return nil
}

// Close stops accepting events. Run drains what is already queued.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.done)

		p.mu.Lock()
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
		p.mu.Unlock()
	})
}

func (p *Pool) process(ctx context.Context, worker int, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic while handling event", "worker", worker, "user_id", ev.UserID, "panic", r)
		}
	}()

	if err := p.handle(ctx, ev); err != nil {
		p.log.Error("failed to handle event", "worker", worker, "user_id", ev.UserID, "error", err)
	}
}

func (p *Pool) shard(id models.UserID) int {
	return int(xxhash.Sum64String(string(id)) % uint64(len(p.queues)))
}
