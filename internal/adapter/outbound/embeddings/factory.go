package embeddings

import (
	"context"
	"fmt"

	"github.com/gatereg/registry/internal/config"
	"github.com/gatereg/registry/internal/domain/embeddings"
)

// NewFromConfig builds the embeddings.Client selected by cfg. The
// returned closer, if non-nil, must be called on shutdown.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (embeddings.Client, func() error, error) {
	switch cfg.Provider {
	case "local":
		c, err := NewLocalClient(ctx, cfg.ModelName, cfg.ModelDimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("build local embeddings client: %w", err)
		}
		return c, c.Close, nil

	case "remote-llm":
		if cfg.Backend == "bedrock" {
			c, err := NewBedrockClient(ctx, cfg.AWSRegion, cfg.ModelName, cfg.ModelDimensions)
			if err != nil {
				return nil, nil, fmt.Errorf("build bedrock embeddings client: %w", err)
			}
			return c, func() error { return nil }, nil
		}
		c := NewRemoteClient(cfg.APIKey, cfg.APIBase, cfg.ModelName, cfg.ModelDimensions)
		return c, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
}
