package domain

import "errors"

var (
	// ErrClientInput is the only failure surfaced to callers of the answer service.
	ErrClientInput = errors.New("invalid client input")

	// ErrCorpusUnavailable means the offline snapshot could not be read.
	// Serving continues with an empty corpus.
	ErrCorpusUnavailable = errors.New("corpus unavailable")

	// ErrInvalidCorpus means a snapshot violates the chunk invariants.
	ErrInvalidCorpus = errors.New("invalid corpus")

	// ErrDimensionMismatch means vectors in one corpus (or a query vector)
	// disagree on dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrVectorsUnavailable means a vector strategy was asked to search a
	// corpus without stored vectors.
	ErrVectorsUnavailable = errors.New("corpus has no vectors")

	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

	ErrEmbedding = errors.New("embedding failed")

	// ErrFetch is a per-URL failure; it never leaves the live fetcher.
	ErrFetch = errors.New("live fetch failed")

	ErrLLMTransport         = errors.New("LLM transport failure")
	ErrLLMMalformedResponse = errors.New("LLM returned a malformed response")
)
