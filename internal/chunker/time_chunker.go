package chunker

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/domain"
)

// TimeChunker aggregates consecutive transcript entries into chunks of at
// least a fixed wall-clock duration. Boundaries are purely time based, not
// semantic: the entry whose start offset from the chunk start reaches the
// threshold closes the chunk it belongs to, and the following entry seeds
// the next one. Only the final chunk of a transcript may be shorter than
// the threshold.
type TimeChunker struct {
	chunkSize float64
}

func NewTimeChunker(chunkSizeSeconds float64) *TimeChunker {
	if chunkSizeSeconds <= 0 {
		chunkSizeSeconds = 60
	}
	return &TimeChunker{chunkSize: chunkSizeSeconds}
}

// ChunkSize returns the configured threshold in seconds.
func (c *TimeChunker) ChunkSize() float64 { return c.chunkSize }

// Chunk splits entries into time-bounded chunks. Entries must be ordered by
// start time; out-of-order input is rejected rather than silently producing
// chunks with broken time ranges.
func (c *TimeChunker) Chunk(entries []domain.TranscriptEntry) ([]domain.Chunk, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Start < entries[i-1].Start {
			return nil, goerr.Wrap(domain.ErrInvalidInput, "transcript entries out of order",
				goerr.V("position", i), goerr.V("start", entries[i].Start))
		}
	}

	var chunks []domain.Chunk
	var buf []string
	chunkStart := entries[0].Start
	for _, e := range entries {
		buf = append(buf, e.Text)
		if e.Start-chunkStart >= c.chunkSize {
			end := e.Start + e.Duration
			chunks = append(chunks, domain.Chunk{
				Text:      strings.Join(buf, " "),
				StartTime: chunkStart,
				EndTime:   end,
			})
			buf = nil
			// next chunk starts where this one ended, so ranges stay
			// contiguous even across caption gaps
			chunkStart = end
		}
	}
	if len(buf) > 0 {
		last := entries[len(entries)-1]
		end := last.Start + last.Duration
		// a long entry spilling past the boundary can push chunkStart beyond
		// the final entry's extent; clamp so EndTime >= StartTime always holds
		if end < chunkStart {
			end = chunkStart
		}
		chunks = append(chunks, domain.Chunk{
			Text:      strings.Join(buf, " "),
			StartTime: chunkStart,
			EndTime:   end,
		})
	}
	return chunks, nil
}
