package jobs

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/domain"
)

// Status is the lifecycle state of a background indexing operation.
type Status string

const (
	StatusPending            Status = "pending"
	StatusFetchingMetadata   Status = "fetching_metadata"
	StatusFetchingTranscript Status = "fetching_transcript"
	StatusIndexing           Status = "indexing"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Operation is the observable state of one indexing job.
type Operation struct {
	ID             string  `json:"operation_id"`
	VideoURL       string  `json:"video_url"`
	Status         Status  `json:"status"`
	Message        string  `json:"message"`
	Error          string  `json:"error,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	startedAt time.Time
	updatedAt time.Time
}

// Tracker records the progress of background indexing operations for status
// polling. All methods are safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	operations map[string]*Operation
}

func NewTracker() *Tracker {
	return &Tracker{operations: make(map[string]*Operation)}
}

// Create registers a new pending operation and returns its ID.
func (t *Tracker) Create(videoURL string) string {
	id := uuid.NewString()
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operations[id] = &Operation{
		ID:        id,
		VideoURL:  videoURL,
		Status:    StatusPending,
		Message:   "Operation created",
		startedAt: now,
		updatedAt: now,
	}
	return id
}

// Update advances an operation's status. opErr, when non-nil, is recorded as
// the operation's error string.
func (t *Tracker) Update(id string, status Status, message string, opErr error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.operations[id]
	if !ok {
		return goerr.Wrap(domain.ErrOperationNotFound, "cannot update", goerr.V("operation_id", id))
	}
	op.Status = status
	op.Message = message
	op.updatedAt = time.Now()
	if opErr != nil {
		op.Error = opErr.Error()
	} else {
		op.Error = ""
	}
	return nil
}

// Get returns a snapshot of an operation including its elapsed time.
func (t *Tracker) Get(id string) (Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.operations[id]
	if !ok {
		return Operation{}, goerr.Wrap(domain.ErrOperationNotFound, "unknown operation", goerr.V("operation_id", id))
	}
	snapshot := *op
	snapshot.ElapsedSeconds = math.Round(op.updatedAt.Sub(op.startedAt).Seconds()*10) / 10
	return snapshot, nil
}

// Cleanup removes operations older than maxAge and returns how many were
// dropped.
func (t *Tracker) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, op := range t.operations {
		if op.startedAt.Before(cutoff) {
			delete(t.operations, id)
			removed++
		}
	}
	return removed
}
