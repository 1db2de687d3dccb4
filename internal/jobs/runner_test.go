package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"ytrag/internal/domain"
	"ytrag/internal/jobs"
)

type fakeSource struct {
	infoErr       error
	transcriptErr error
}

func (f *fakeSource) FetchVideoInfo(_ context.Context, videoURL string) (domain.VideoInfo, error) {
	if f.infoErr != nil {
		return domain.VideoInfo{}, f.infoErr
	}
	return domain.VideoInfo{VideoID: "dQw4w9WgXcQ", Title: "A Video", URL: videoURL}, nil
}

func (f *fakeSource) FetchTranscript(_ context.Context, _ string) ([]domain.TranscriptEntry, error) {
	if f.transcriptErr != nil {
		return nil, f.transcriptErr
	}
	return []domain.TranscriptEntry{{Text: "hello", Start: 0, Duration: 5}}, nil
}

type fakeIndexer struct {
	err     error
	indexed []domain.VideoInfo
}

func (f *fakeIndexer) IndexTranscript(_ context.Context, video domain.VideoInfo, _ []domain.TranscriptEntry) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.indexed = append(f.indexed, video)
	return video.VideoID, nil
}

// waitTerminal polls until the operation reaches a terminal status.
func waitTerminal(t *testing.T, r *jobs.Runner, id string) jobs.Operation {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		op, err := r.Status(id)
		gt.NoError(t, err).Required()
		if op.Status.Terminal() {
			return op
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("operation never reached a terminal status")
	return jobs.Operation{}
}

func TestRunnerSuccess(t *testing.T) {
	indexer := &fakeIndexer{}
	r := jobs.NewRunner(jobs.NewTracker(), &fakeSource{}, indexer)

	id := r.Start(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	gt.String(t, id).NotEqual("")

	op := waitTerminal(t, r, id)
	gt.Value(t, op.Status).Equal(jobs.StatusCompleted)
	gt.Value(t, op.Message).Equal("Video indexed successfully!")
	gt.Value(t, op.Error).Equal("")
	gt.Array(t, indexer.indexed).Length(1)
	gt.Value(t, indexer.indexed[0].VideoID).Equal("dQw4w9WgXcQ")
}

func TestRunnerMetadataFailure(t *testing.T) {
	source := &fakeSource{infoErr: goerr.New("video not found")}
	r := jobs.NewRunner(jobs.NewTracker(), source, &fakeIndexer{})

	id := r.Start(context.Background(), "https://youtu.be/dQw4w9WgXcQ")

	op := waitTerminal(t, r, id)
	gt.Value(t, op.Status).Equal(jobs.StatusFailed)
	gt.Value(t, op.Message).Equal("Failed to fetch video metadata")
	gt.Value(t, op.Error).Equal("video not found")
}

func TestRunnerTranscriptFailure(t *testing.T) {
	source := &fakeSource{transcriptErr: goerr.New("no captions")}
	r := jobs.NewRunner(jobs.NewTracker(), source, &fakeIndexer{})

	id := r.Start(context.Background(), "https://youtu.be/dQw4w9WgXcQ")

	op := waitTerminal(t, r, id)
	gt.Value(t, op.Status).Equal(jobs.StatusFailed)
	gt.Value(t, op.Message).Equal("Failed to fetch transcript")
}

func TestRunnerIndexFailure(t *testing.T) {
	indexer := &fakeIndexer{err: goerr.Wrap(domain.ErrAlreadyIndexed, "refusing to duplicate chunks")}
	r := jobs.NewRunner(jobs.NewTracker(), &fakeSource{}, indexer)

	id := r.Start(context.Background(), "https://youtu.be/dQw4w9WgXcQ")

	op := waitTerminal(t, r, id)
	gt.Value(t, op.Status).Equal(jobs.StatusFailed)
	gt.Value(t, op.Message).Equal("Failed to index transcript")
}
