package embedding

import "context"

// Embedder converts free text into a fixed-dimension dense vector. The
// provider fixes the dimension; Dimension returns 0 until the first
// successful Embed call unless the implementation knows it upfront.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
