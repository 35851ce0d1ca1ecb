// Package embeddings provides the two embeddings.Client implementations
// gatereg wires in: a local wazero-hosted model and a remote
// OpenAI-compatible (optionally Bedrock-routed) HTTP client.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gatereg/registry/internal/tracing"
)

// wasmInput/wasmOutput are the stdin/stdout JSON contract the bundled
// embedding model binary speaks: one array of texts in, one array of
// equal-length float vectors out.
type wasmInput struct {
	Texts []string `json:"texts"`
}

type wasmOutput struct {
	Vectors [][]float32 `json:"vectors"`
}

// LocalClient runs a WASI-compiled embedding model entirely in-process
// via wazero, with no filesystem or network access granted to the
// module: deny-by-default, same as any other sandboxed pack.
type LocalClient struct {
	mu        sync.Mutex
	runtime   wazero.Runtime
	compiled  wazero.CompiledModule
	modConfig wazero.ModuleConfig
	dimension int
}

// NewLocalClient compiles the WASM model at modelPath and probes it
// once with an empty-string input to learn its actual output
// dimension, correcting wantDimension if they disagree.
func NewLocalClient(ctx context.Context, modelPath string, wantDimension int) (*LocalClient, error) {
	wasmBytes, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read embedding model: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile embedding model: %w", err)
	}

	c := &LocalClient{
		runtime:  r,
		compiled: compiled,
		modConfig: wazero.NewModuleConfig().
			WithName("gatereg-embedder"),
		dimension: wantDimension,
	}

	probe, err := c.encodeOne(ctx, "")
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("probe embedding model: %w", err)
	}
	if len(probe) > 0 && len(probe) != wantDimension {
		slog.Warn("embedding model dimension differs from configured value; using the model's", "configured", wantDimension, "actual", len(probe))
		c.dimension = len(probe)
	}
	return c, nil
}

func (c *LocalClient) Dimension() int { return c.dimension }

func (c *LocalClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, span := tracing.Tracer().Start(ctx, "embeddings.local.Encode")
	span.SetAttributes(attribute.Int("gatereg.embeddings.batch_size", len(texts)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	in, err := json.Marshal(wasmInput{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	modCfg := c.modConfig.
		WithStdin(bytes.NewReader(in)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := c.runtime.InstantiateModule(ctx, c.compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("run embedding model: %w", err)
	}
	defer func() { _ = mod.Close(ctx) }()

	var out wasmOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode embedding output: %w (stderr: %s)", err, stderr.String())
	}
	if len(out.Vectors) != len(texts) {
		return nil, fmt.Errorf("embedding model returned %d vectors for %d texts", len(out.Vectors), len(texts))
	}
	return out.Vectors, nil
}

func (c *LocalClient) encodeOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}

// Close releases the wazero runtime and compiled module.
func (c *LocalClient) Close() error {
	ctx := context.Background()
	if c.compiled != nil {
		_ = c.compiled.Close(ctx)
	}
	if c.runtime != nil {
		return c.runtime.Close(ctx)
	}
	return nil
}
