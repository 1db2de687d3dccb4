package domain

// TranscriptEntry is one raw caption unit as produced by the transcript
// source. Entries are ordered by start time and never mutated.
type TranscriptEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Chunk is a time-bounded aggregation of consecutive transcript entries.
// Chunks within one video are non-overlapping and cover the whole transcript.
type Chunk struct {
	Text      string
	StartTime float64
	EndTime   float64
}

// ChunkMetadata is the persisted, queryable record for one indexed chunk.
// ChunkID equals the record's position in the metadata store, which is also
// the position of its embedding in the vector index. That positional
// correspondence is the only join between vector space and text.
type ChunkMetadata struct {
	VideoID    string  `json:"video_id"`
	VideoTitle string  `json:"video_title"`
	URL        string  `json:"url"`
	ChunkID    int     `json:"chunk_id"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
}

// SearchResult is a matching chunk hydrated with its video metadata. URL is a
// deep link that includes the chunk's timestamp offset. Score is bounded to
// (0, 1] and decreases with rank.
type SearchResult struct {
	Text       string  `json:"text"`
	VideoID    string  `json:"video_id"`
	VideoTitle string  `json:"video_title"`
	URL        string  `json:"url"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Score      float64 `json:"score"`
}

// VideoInfo identifies a video whose transcript is being ingested.
type VideoInfo struct {
	VideoID string
	Title   string
	URL     string
}
