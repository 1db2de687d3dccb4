package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"ytrag/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
	gt.NoError(t, err).Required()

	gt.Value(t, cfg.Embedder.Type).Equal("ollama")
	gt.Value(t, cfg.Embedder.Ollama.BaseURL).Equal("http://localhost:11434")
	gt.Value(t, cfg.Embedder.Ollama.Model).Equal("nomic-embed-text")
	gt.Value(t, cfg.Chunker.ChunkSizeSeconds).Equal(60.0)
	gt.Value(t, cfg.Storage.IndexDir).Equal("data/index")
	gt.Value(t, cfg.YouTube.Lang).Equal("en")
	gt.Value(t, cfg.Server.Addr).Equal(":8080")
	gt.Value(t, cfg.Search.TopK).Equal(6)
}

func TestLoadAppliesDefaultsToPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `embedder:
  type: ollama
  ollama:
    model: all-minilm
chunker:
  chunk_size_seconds: 30
storage:
  index_dir: /tmp/ytrag-index
`
	gt.NoError(t, os.WriteFile(path, []byte(raw), 0o644)).Required()

	cfg, err := config.Load(path)
	gt.NoError(t, err).Required()

	gt.Value(t, cfg.Embedder.Ollama.Model).Equal("all-minilm")
	gt.Value(t, cfg.Embedder.Ollama.BaseURL).Equal("http://localhost:11434")
	gt.Value(t, cfg.Chunker.ChunkSizeSeconds).Equal(30.0)
	gt.Value(t, cfg.Storage.IndexDir).Equal("/tmp/ytrag-index")
	gt.Value(t, cfg.YouTube.Lang).Equal("en")
	gt.Value(t, cfg.Search.TopK).Equal(6)
}

func TestLoadOpenAIEmbedder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `embedder:
  type: openai
  dimension: 1536
  openai:
    model: text-embedding-3-small
`
	gt.NoError(t, os.WriteFile(path, []byte(raw), 0o644)).Required()

	cfg, err := config.Load(path)
	gt.NoError(t, err).Required()

	gt.Value(t, cfg.Embedder.Type).Equal("openai")
	gt.Value(t, cfg.Embedder.Dimension).Equal(1536)
	gt.Value(t, cfg.Embedder.OpenAI.BaseURL).Equal("https://api.openai.com/v1")
	gt.Value(t, cfg.Embedder.OpenAI.APIKeyEnv).Equal("OPENAI_API_KEY")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644)).Required()

	_, err := config.Load(path)
	gt.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	gt.NoError(t, err).Required()
	cfg.Chunker.ChunkSizeSeconds = 45
	cfg.Search.TopK = 10
	cfg.Server.Addr = ":9090"

	gt.NoError(t, config.Save(path, cfg)).Required()

	loaded, err := config.Load(path)
	gt.NoError(t, err).Required()
	gt.Value(t, loaded).Equal(cfg)
}
