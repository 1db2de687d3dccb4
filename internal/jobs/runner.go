package jobs

import (
	"context"

	"ytrag/internal/domain"
	"ytrag/internal/logging"
)

// VideoSource resolves a video URL into metadata and a transcript.
type VideoSource interface {
	FetchVideoInfo(ctx context.Context, videoURL string) (domain.VideoInfo, error)
	FetchTranscript(ctx context.Context, videoID string) ([]domain.TranscriptEntry, error)
}

// Indexer ingests a transcript into the retrieval index.
type Indexer interface {
	IndexTranscript(ctx context.Context, video domain.VideoInfo, transcript []domain.TranscriptEntry) (string, error)
}

// Runner executes indexing operations in the background and reports their
// progress through a Tracker.
type Runner struct {
	tracker *Tracker
	source  VideoSource
	indexer Indexer
}

func NewRunner(tracker *Tracker, source VideoSource, indexer Indexer) *Runner {
	return &Runner{tracker: tracker, source: source, indexer: indexer}
}

// Start registers an operation for the given URL and runs it on a new
// goroutine. The job is detached from the caller's context so it survives
// the originating HTTP request; only the logger is carried over.
func (r *Runner) Start(ctx context.Context, videoURL string) string {
	opID := r.tracker.Create(videoURL)
	bgCtx := logging.With(context.Background(), logging.From(ctx))

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logging.From(bgCtx).Error("panic in indexing job", "panic", rec, "operation_id", opID)
				_ = r.tracker.Update(opID, StatusFailed, "An error occurred while indexing", nil)
			}
		}()
		r.run(bgCtx, opID, videoURL)
	}()
	return opID
}

// Status returns the current state of an operation.
func (r *Runner) Status(id string) (Operation, error) {
	return r.tracker.Get(id)
}

func (r *Runner) run(ctx context.Context, opID, videoURL string) {
	fail := func(msg string, err error) {
		logging.From(ctx).Error("indexing job failed",
			"operation_id", opID, "url", videoURL, "reason", msg, "error", err)
		_ = r.tracker.Update(opID, StatusFailed, msg, err)
	}

	_ = r.tracker.Update(opID, StatusFetchingMetadata, "Fetching video metadata...", nil)
	video, err := r.source.FetchVideoInfo(ctx, videoURL)
	if err != nil {
		fail("Failed to fetch video metadata", err)
		return
	}

	_ = r.tracker.Update(opID, StatusFetchingTranscript, "Fetching video transcript...", nil)
	transcript, err := r.source.FetchTranscript(ctx, video.VideoID)
	if err != nil {
		fail("Failed to fetch transcript", err)
		return
	}

	_ = r.tracker.Update(opID, StatusIndexing, "Processing and indexing transcript...", nil)
	if _, err := r.indexer.IndexTranscript(ctx, video, transcript); err != nil {
		fail("Failed to index transcript", err)
		return
	}

	_ = r.tracker.Update(opID, StatusCompleted, "Video indexed successfully!", nil)
}
