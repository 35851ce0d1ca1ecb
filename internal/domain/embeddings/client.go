// Package embeddings defines the text-to-vector port that the vector
// index (C7) depends on. Variants (a local wazero-hosted model, a
// remote OpenAI-compatible endpoint) implement this small surface;
// neither the index nor the search service knows which one is wired.
package embeddings

import "context"

// Client abstracts encode(texts) -> matrix with a fixed output
// dimension. Encode must be pure (no mutation of texts) and
// batch-friendly; it is the only suspension point the vector index
// introduces into an otherwise synchronous upsert/search path.
type Client interface {
	// Encode returns one embedding vector per input text, in order.
	// Encoding a zero-length text yields a zero vector, never a panic
	// or a division by zero downstream.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the client's actual output dimension. If the
	// configured dimension disagreed with the model's actual dimension
	// at construction time, this is the actual (corrected) value.
	Dimension() int
}
