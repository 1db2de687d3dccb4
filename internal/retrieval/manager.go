package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/chunker"
	"ytrag/internal/domain"
	"ytrag/internal/embedding"
	"ytrag/internal/logging"
	"ytrag/internal/vectorstore/flat"
)

const (
	indexFile    = "index.bin"
	metadataFile = "metadata.json"

	defaultTopK = 6
)

// Config configures a retrieval Manager.
type Config struct {
	// IndexDir holds the persisted index blob and metadata document.
	IndexDir string
	// TranscriptsDir, when set, receives a raw transcript snapshot after
	// every successful ingest.
	TranscriptsDir string
	// ChunkSizeSeconds is the chunking threshold. Zero means 60.
	ChunkSizeSeconds float64
	// Dimension optionally pins the index dimensionality upfront instead of
	// adopting it from the first embedding.
	Dimension int
}

// Manager owns the vector index and its parallel chunk metadata, and
// orchestrates chunking, embedding and persistence. One read-write lock
// guards the live index+metadata pair: ingest takes it exclusively across
// the append-persist sequence, queries share it.
type Manager struct {
	mu       sync.RWMutex
	index    *flat.Index
	metadata []domain.ChunkMetadata

	chunker  *chunker.TimeChunker
	embedder embedding.Embedder
	cfg      Config
}

// NewManager creates a Manager and loads any previously persisted state from
// cfg.IndexDir. Unreadable artifacts are logged as a data-loss event and the
// manager starts empty.
func NewManager(cfg Config, embedder embedding.Embedder) (*Manager, error) {
	if cfg.IndexDir == "" {
		return nil, goerr.New("index directory is required")
	}
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "creating index directory failed", goerr.V("dir", cfg.IndexDir))
	}
	if cfg.TranscriptsDir != "" {
		if err := os.MkdirAll(cfg.TranscriptsDir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "creating transcripts directory failed", goerr.V("dir", cfg.TranscriptsDir))
		}
	}

	m := &Manager{
		index:    flat.New(cfg.Dimension),
		chunker:  chunker.NewTimeChunker(cfg.ChunkSizeSeconds),
		embedder: embedder,
		cfg:      cfg,
	}
	m.load()
	return m, nil
}

// load restores the index blob and metadata document. Both must be present
// and consistent; anything else falls back to an empty index, loudly for
// corruption and silently for a fresh directory.
func (m *Manager) load() {
	indexPath := filepath.Join(m.cfg.IndexDir, indexFile)
	metaPath := filepath.Join(m.cfg.IndexDir, metadataFile)

	_, indexErr := os.Stat(indexPath)
	_, metaErr := os.Stat(metaPath)
	if os.IsNotExist(indexErr) && os.IsNotExist(metaErr) {
		return
	}

	if err := m.loadArtifacts(indexPath, metaPath); err != nil {
		logging.Default().Error("persisted index unreadable, falling back to empty state; previously indexed data is lost",
			"error", err, "index_dir", m.cfg.IndexDir)
		m.index = flat.New(m.cfg.Dimension)
		m.metadata = nil
	}
}

func (m *Manager) loadArtifacts(indexPath, metaPath string) error {
	f, err := os.Open(indexPath)
	if err != nil {
		return goerr.Wrap(domain.ErrIndexUnavailable, "opening index blob failed", goerr.V("cause", err))
	}
	defer f.Close()

	ix, err := flat.Decode(f)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return goerr.Wrap(domain.ErrIndexUnavailable, "reading metadata document failed", goerr.V("cause", err))
	}
	var metadata []domain.ChunkMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return goerr.Wrap(domain.ErrIndexUnavailable, "parsing metadata document failed", goerr.V("cause", err))
	}

	if ix.Len() != len(metadata) {
		return goerr.Wrap(domain.ErrIndexUnavailable, "index and metadata diverge",
			goerr.V("vectors", ix.Len()), goerr.V("records", len(metadata)))
	}
	if m.cfg.Dimension > 0 && ix.Len() > 0 && ix.Dimension() != m.cfg.Dimension {
		return goerr.Wrap(domain.ErrIndexUnavailable, "persisted index dimension disagrees with configuration",
			goerr.V("configured", m.cfg.Dimension), goerr.V("persisted", ix.Dimension()))
	}

	m.index = ix
	m.metadata = metadata
	return nil
}

// Count returns the number of indexed chunks.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.metadata)
}

// HasVideo reports whether any chunk of the given video is indexed.
func (m *Manager) HasVideo(videoID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasVideoLocked(videoID)
}

func (m *Manager) hasVideoLocked(videoID string) bool {
	for i := range m.metadata {
		if m.metadata[i].VideoID == videoID {
			return true
		}
	}
	return false
}

// IndexTranscript chunks and embeds a transcript and appends the result to
// the index, then persists both artifacts. The operation is all-or-nothing:
// every chunk embeds into a staging batch before the live index is touched,
// and a failure anywhere leaves both memory and disk as they were.
func (m *Manager) IndexTranscript(ctx context.Context, video domain.VideoInfo, transcript []domain.TranscriptEntry) (string, error) {
	if video.VideoID == "" || video.Title == "" || video.URL == "" {
		return "", goerr.Wrap(domain.ErrInvalidInput, "video id, title and url are required",
			goerr.V("video_id", video.VideoID))
	}
	if len(transcript) == 0 {
		return "", goerr.Wrap(domain.ErrInvalidInput, "transcript is empty", goerr.V("video_id", video.VideoID))
	}
	if m.HasVideo(video.VideoID) {
		return "", goerr.Wrap(domain.ErrAlreadyIndexed, "refusing to duplicate chunks", goerr.V("video_id", video.VideoID))
	}

	chunks, err := m.chunker.Chunk(transcript)
	if err != nil {
		return "", err
	}

	// Staging: embed everything before taking the write lock so queries are
	// not blocked behind provider calls and a mid-batch failure leaves no
	// partial state anywhere.
	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		vec, err := m.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return "", goerr.Wrap(err, "embedding chunk failed",
				goerr.V("video_id", video.VideoID), goerr.V("chunk", i))
		}
		if m.cfg.Dimension > 0 && len(vec) != m.cfg.Dimension {
			return "", goerr.Wrap(domain.ErrDimensionMismatch, "embedding disagrees with configured dimension",
				goerr.V("want", m.cfg.Dimension), goerr.V("got", len(vec)))
		}
		vectors[i] = vec
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasVideoLocked(video.VideoID) {
		return "", goerr.Wrap(domain.ErrAlreadyIndexed, "refusing to duplicate chunks", goerr.V("video_id", video.VideoID))
	}

	base := len(m.metadata)
	if err := m.index.Add(vectors); err != nil {
		return "", err
	}
	for i := range chunks {
		m.metadata = append(m.metadata, domain.ChunkMetadata{
			VideoID:    video.VideoID,
			VideoTitle: video.Title,
			URL:        video.URL,
			ChunkID:    base + i,
			Text:       chunks[i].Text,
			StartTime:  chunks[i].StartTime,
			EndTime:    chunks[i].EndTime,
		})
	}

	if err := m.persistLocked(); err != nil {
		m.index.Truncate(base)
		m.metadata = m.metadata[:base]
		return "", goerr.Wrap(err, "persisting index failed, ingest rolled back", goerr.V("video_id", video.VideoID))
	}

	m.snapshotTranscript(ctx, video, transcript)

	logging.From(ctx).Info("transcript indexed",
		"video_id", video.VideoID, "chunks", len(chunks), "total_chunks", base+len(chunks))
	return video.VideoID, nil
}

// Search embeds the query and returns up to k chunks by ascending distance,
// hydrated with their video metadata. A never-ingested index yields an empty
// result, not an error. k defaults to 6.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "query is empty")
	}
	if k <= 0 {
		k = defaultTopK
	}
	if m.Count() == 0 {
		return nil, nil
	}

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "embedding query failed")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits, err := m.index.Search(vec, k)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		meta := m.metadata[h.Position]
		results = append(results, domain.SearchResult{
			Text:       meta.Text,
			VideoID:    meta.VideoID,
			VideoTitle: meta.VideoTitle,
			URL:        deepLink(meta.URL, meta.StartTime),
			StartTime:  meta.StartTime,
			EndTime:    meta.EndTime,
			// bounded relevance for presentation; raw L2 distance is not
			Score: 1.0 / (1.0 + h.Distance),
		})
	}
	return results, nil
}

// persistLocked writes both artifacts under the write lock, each via a temp
// file and rename so readers of the directory never observe a torn write.
func (m *Manager) persistLocked() error {
	metaData, err := json.MarshalIndent(m.metadata, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "encoding metadata failed")
	}
	if err := writeFileAtomic(filepath.Join(m.cfg.IndexDir, metadataFile), metaData); err != nil {
		return err
	}

	var blob bytes.Buffer
	if err := m.index.Encode(&blob); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(m.cfg.IndexDir, indexFile), blob.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return goerr.Wrap(err, "writing artifact failed", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		return goerr.Wrap(err, "replacing artifact failed", goerr.V("path", path))
	}
	return nil
}

// snapshotTranscript saves the raw transcript next to the index, best-effort.
func (m *Manager) snapshotTranscript(ctx context.Context, video domain.VideoInfo, transcript []domain.TranscriptEntry) {
	if m.cfg.TranscriptsDir == "" {
		return
	}
	payload := struct {
		VideoID    string                   `json:"video_id"`
		VideoTitle string                   `json:"video_title"`
		URL        string                   `json:"url"`
		Transcript []domain.TranscriptEntry `json:"transcript"`
	}{video.VideoID, video.Title, video.URL, transcript}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logging.From(ctx).Warn("encoding transcript snapshot failed", "error", err, "video_id", video.VideoID)
		return
	}
	name := fmt.Sprintf("transcript_%s_%s.json", video.VideoID, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(filepath.Join(m.cfg.TranscriptsDir, name), data, 0o644); err != nil {
		logging.From(ctx).Warn("writing transcript snapshot failed", "error", err, "video_id", video.VideoID)
	}
}

// deepLink appends a timestamp fragment to a video URL.
func deepLink(url string, start float64) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%ds", url, sep, int(start))
}
