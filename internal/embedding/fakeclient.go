package embedding

import (
	"context"
	"hash/fnv"

	"github.com/rohmanhakim/crawlcore/pkg/failure"
)

// FakeClient is a deterministic Client for tests: it never calls out to
// OpenAI, producing a fixed-width vector derived from each text's hash so
// the same input always embeds to the same vector.
type FakeClient struct {
	dimension   int
	failNext    failure.ClassifiedError
	shortCount  int
}

func NewFakeClient(dimension int) *FakeClient {
	return &FakeClient{dimension: dimension}
}

// FailNext makes the next Embed call return err instead of embedding.
func (f *FakeClient) FailNext(err failure.ClassifiedError) {
	f.failNext = err
}

// ShortCount makes the next Embed call return n fewer vectors than
// requested, exercising the Open Question #3 mismatch path.
func (f *FakeClient) ShortCount(n int) {
	f.shortCount = n
}

func (f *FakeClient) Dimension() int {
	return f.dimension
}

func (f *FakeClient) Embed(_ context.Context, texts []string) ([][]float32, failure.ClassifiedError) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}

	n := len(texts)
	if f.shortCount > 0 {
		n -= f.shortCount
		f.shortCount = 0
		if n < 0 {
			n = 0
		}
	}

	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		out[i] = deterministicVector(texts[i], f.dimension)
	}
	return out, nil
}

func deterministicVector(text string, dimension int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dimension)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed%2003)-1000) / 1000.0
	}
	return vec
}
