package chunk

import "strings"

/*
Responsibilities

- Split a document's plain text into token-budgeted, overlapping windows
  so the embedding model's context limit is never exceeded and search
  results can cite the specific passage that matched

Token counting here is a whitespace-token approximation, not a real
tokenizer: go-openai does not expose one, and pulling in a full BPE
tokenizer for this one estimate is not worth a new dependency when the
budget only needs to be approximately right (it is sized well under the
embedding model's real limit).
*/

// Param configures how Split windows text.
type Param struct {
	// MaxTokens is the approximate per-chunk token budget.
	MaxTokens int
	// OverlapTokens is how many trailing tokens of a chunk are repeated
	// at the start of the next one, so a match spanning a chunk boundary
	// is not lost entirely.
	OverlapTokens int
}

// Chunk is one windowed slice of a document's text.
type Chunk struct {
	Index int
	Text  string
}

// Split windows text into overlapping Chunks per param. A text shorter
// than MaxTokens produces exactly one chunk.
func Split(text string, param Param) []Chunk {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	if param.MaxTokens <= 0 {
		return []Chunk{{Index: 0, Text: text}}
	}

	stride := param.MaxTokens - param.OverlapTokens
	if stride <= 0 {
		stride = param.MaxTokens
	}

	var chunks []Chunk
	for start, idx := 0, 0; start < len(tokens); start += stride {
		end := start + param.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{Index: idx, Text: strings.Join(tokens[start:end], " ")})
		idx++
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
