package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// RemoteClient calls an OpenAI-compatible embeddings endpoint over
// HTTP. It is the default "remote-llm" provider backend.
type RemoteClient struct {
	client    openai.Client
	model     string
	dimension int
}

// NewRemoteClient builds a RemoteClient against apiBase (empty for the
// public OpenAI API) using apiKey for bearer auth.
func NewRemoteClient(apiKey, apiBase, model string, dimension int) *RemoteClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &RemoteClient{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
	}
}

func (c *RemoteClient) Dimension() int { return c.dimension }

func (c *RemoteClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("remote embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("remote embeddings returned %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	if len(out) > 0 && len(out[0]) != c.dimension {
		slog.Warn("embedding model dimension differs from configured value; using the model's", "configured", c.dimension, "actual", len(out[0]))
		c.dimension = len(out[0])
	}
	return out, nil
}

// BedrockClient calls an Amazon Bedrock embeddings model (e.g. Amazon
// Titan Embeddings) via the runtime InvokeModel API. It is the
// "bedrock" backend for the "remote-llm" provider.
type BedrockClient struct {
	runtime   *bedrockruntime.Client
	model     string
	dimension int
}

// NewBedrockClient loads the default AWS config for region and builds
// a bedrockruntime client bound to model (a Bedrock model ID, e.g.
// "amazon.titan-embed-text-v2:0").
func NewBedrockClient(ctx context.Context, region, model string, dimension int) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockClient{
		runtime:   bedrockruntime.NewFromConfig(cfg),
		model:     model,
		dimension: dimension,
	}, nil
}

type titanEmbeddingRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbeddingResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func (c *BedrockClient) Dimension() int { return c.dimension }

// Encode invokes the Bedrock model once per text; Titan Embeddings
// does not accept a text batch in a single InvokeModel call.
func (c *BedrockClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		body, err := json.Marshal(titanEmbeddingRequest{InputText: text})
		if err != nil {
			return nil, fmt.Errorf("marshal bedrock request: %w", err)
		}
		resp, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(c.model),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock invoke model: %w", err)
		}
		var decoded titanEmbeddingResponse
		if err := json.NewDecoder(bytes.NewReader(resp.Body)).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode bedrock response: %w", err)
		}
		out[i] = decoded.Embedding
	}
	if len(out) > 0 && len(out[0]) != c.dimension {
		slog.Warn("embedding model dimension differs from configured value; using the model's", "configured", c.dimension, "actual", len(out[0]))
		c.dimension = len(out[0])
	}
	return out, nil
}
