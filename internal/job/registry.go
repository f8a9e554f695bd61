package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrDuplicateJob means two registrations raced on the same id. Job ids
	// are random UUIDs, so this indicates a logic error, not bad input.
	ErrDuplicateJob = errors.New("job already registered")

	// ErrJobNotFound is returned for cancel requests against unknown or
	// already-finished jobs. Expected in normal operation.
	ErrJobNotFound = errors.New("job not found")
)

// Metadata is descriptive information reported by the engine after the first
// unit of work. Set once, never overwritten.
type Metadata struct {
	Model            string
	Task             string
	DetectedLanguage string
}

// Handle is the per-job cancellation flag plus metadata. The streaming runner
// owns the handle; the registry keeps a non-owning reference so an external
// stop request can reach the flag. The flag only ever transitions false to
// true.
type Handle struct {
	jobID     string
	createdAt time.Time
	cancelled atomic.Bool

	mu      sync.Mutex
	meta    Metadata
	metaSet bool
}

func (h *Handle) JobID() string {
	return h.jobID
}

func (h *Handle) CreatedAt() time.Time {
	return h.createdAt
}

func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// SetMetadata records engine metadata. The first call wins.
func (h *Handle) SetMetadata(meta Metadata) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.metaSet {
		return
	}
	h.meta = meta
	h.metaSet = true
}

func (h *Handle) Metadata() (Metadata, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.meta, h.metaSet
}

// Registry tracks in-flight streaming jobs so a stop request from one
// connection can reach the producer of another. Entries are removed by the
// runner's terminal cleanup; the sweeper evicts anything left behind by a
// stream that never reached a terminal state.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*Handle
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:   make(map[string]*Handle),
		logger: logger.With("component", "job_registry"),
	}
}

func (r *Registry) Register(jobID string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jobID]; exists {
		return nil, ErrDuplicateJob
	}

	handle := &Handle{jobID: jobID, createdAt: time.Now()}
	r.jobs[jobID] = handle
	return handle, nil
}

// RequestCancel sets the cancel flag of a live job. Idempotent on a live job;
// returns ErrJobNotFound once the job has been unregistered.
func (r *Registry) RequestCancel(jobID string) error {
	r.mu.Lock()
	handle, ok := r.jobs[jobID]
	r.mu.Unlock()

	if !ok {
		return ErrJobNotFound
	}
	handle.Cancel()
	return nil
}

func (r *Registry) Get(jobID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.jobs[jobID]
	return handle, ok
}

// Unregister removes a job. Safe to call more than once.
func (r *Registry) Unregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Sweep cancels and evicts entries older than maxAge, returning how many were
// removed. Normally the runner unregisters its own job; the sweep only
// catches streams that were abandoned without terminal cleanup.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, handle := range r.jobs {
		if handle.createdAt.Before(cutoff) {
			handle.Cancel()
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// RunSweeper runs Sweep on a ticker until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(maxAge); n > 0 {
				r.logger.Warn("evicted stale jobs", "count", n, "max_age", maxAge)
			}
		case <-ctx.Done():
			return
		}
	}
}
