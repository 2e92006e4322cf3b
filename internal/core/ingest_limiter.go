package core

// ingest_limiter.go admits CSV batches into the pipeline.
//
// A batch is held in memory from parse until commit, so the number of
// batches in flight bounds both peak memory and the number of open write
// transactions. A batch that cannot get a slot within the wait window is
// rejected with ErrIngestBusy and the caller retries later.

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrIngestBusy is returned when every batch slot stays occupied for the
// whole wait window.
var ErrIngestBusy = errors.New("ingestion busy: all batch slots are in use")

const (
	// DefaultMaxConcurrentIngests is the number of batches processed at once.
	DefaultMaxConcurrentIngests = 5
	// DefaultIngestWait is how long a batch waits for a slot.
	DefaultIngestWait = 30 * time.Second
)

// IngestLimiter bounds the CSV batches being parsed, validated and
// committed at the same time.
type IngestLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu       sync.Mutex
	inFlight map[string]time.Time // batch id -> admitted at
	idle     chan struct{}        // closed while nothing is in flight
}

// NewIngestLimiter admits at most maxConcurrent batches at once.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentIngests
	}
	if maxWait <= 0 {
		maxWait = DefaultIngestWait
	}

	idle := make(chan struct{})
	close(idle)
	return &IngestLimiter{
		slots:    make(chan struct{}, maxConcurrent),
		maxWait:  maxWait,
		inFlight: make(map[string]time.Time),
		idle:     idle,
	}
}

// Admit waits for a slot for batchID. On success the returned release must
// be called once the batch has committed or been rejected; calling it more
// than once is harmless.
func (l *IngestLimiter) Admit(ctx context.Context, batchID string) (release func(), err error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrIngestBusy
	}

	l.mu.Lock()
	if len(l.inFlight) == 0 {
		l.idle = make(chan struct{})
	}
	l.inFlight[batchID] = time.Now()
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.finish(batchID) }) }, nil
}

func (l *IngestLimiter) finish(batchID string) {
	l.mu.Lock()
	delete(l.inFlight, batchID)
	if len(l.inFlight) == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

// Drain blocks until no batch is in flight or ctx is done.
func (l *IngestLimiter) Drain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlightBatch is a batch currently holding a slot.
type InFlightBatch struct {
	BatchID  string    `json:"batch_id"`
	Admitted time.Time `json:"admitted_at"`
}

// IngestStatus is a snapshot of the limiter.
type IngestStatus struct {
	Active        int             `json:"active"`
	Available     int             `json:"available"`
	MaxConcurrent int             `json:"max_concurrent"`
	Batches       []InFlightBatch `json:"batches,omitempty"`
}

// Status reports the batches in flight, oldest first.
func (l *IngestLimiter) Status() IngestStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := IngestStatus{
		Active:        len(l.inFlight),
		Available:     cap(l.slots) - len(l.inFlight),
		MaxConcurrent: cap(l.slots),
	}
	for id, at := range l.inFlight {
		st.Batches = append(st.Batches, InFlightBatch{BatchID: id, Admitted: at})
	}
	slices.SortFunc(st.Batches, func(a, b InFlightBatch) int {
		if c := a.Admitted.Compare(b.Admitted); c != 0 {
			return c
		}
		return cmp.Compare(a.BatchID, b.BatchID)
	})
	return st
}
