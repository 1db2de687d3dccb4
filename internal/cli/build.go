package cli

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"ytrag/internal/config"
	"ytrag/internal/embedding"
	"ytrag/internal/embedding/ollama"
	"ytrag/internal/embedding/openai"
	"ytrag/internal/retrieval"
	"ytrag/internal/youtube"
)

func configFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "Path to YAML config file (default: ./config.yaml, then ~/.config/ytrag/config.yaml)",
		Sources:     cli.EnvVars("YTRAG_CONFIG"),
		Destination: dst,
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

func newEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "ollama", "":
		oc := cfg.Embedder.Ollama
		if oc == nil {
			oc = &config.OllamaEmbedderConfig{}
		}
		return ollama.NewClient(ollama.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		}), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, goerr.New("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
	default:
		return nil, goerr.New("unknown embedder type", goerr.V("type", cfg.Embedder.Type))
	}
}

func newManager(cfg *config.AppConfig) (*retrieval.Manager, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return retrieval.NewManager(retrieval.Config{
		IndexDir:         cfg.Storage.IndexDir,
		TranscriptsDir:   cfg.Storage.TranscriptsDir,
		ChunkSizeSeconds: cfg.Chunker.ChunkSizeSeconds,
		Dimension:        cfg.Embedder.Dimension,
	}, emb)
}

func newYouTubeClient(cfg *config.AppConfig) *youtube.Client {
	return youtube.NewClient(youtube.Config{
		Lang:    cfg.YouTube.Lang,
		Timeout: time.Duration(cfg.YouTube.TimeoutSecs) * time.Second,
	})
}
