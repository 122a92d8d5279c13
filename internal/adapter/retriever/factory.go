package retriever

import (
	"fmt"

	"unirag/internal/adapter/analyzer"
	"unirag/internal/port"
)

// Options selects and tunes the deployment's retrieval strategy.
type Options struct {
	Strategy      string
	MinTokenLen   int
	RRFK          int
	LexicalWeight float64
	Embedder      port.Embedder
}

// New builds the retriever for a strategy. Vector-based strategies require
// an embedder.
func New(opts Options) (port.Retriever, error) {
	lexical := NewLexicalRetriever(analyzer.NewTokenizer(opts.MinTokenLen))

	switch opts.Strategy {
	case "", "lexical":
		return lexical, nil
	case "vector":
		if opts.Embedder == nil {
			return nil, fmt.Errorf("vector strategy requires an embedder")
		}
		return NewVectorRetriever(opts.Embedder), nil
	case "hybrid":
		if opts.Embedder == nil {
			return nil, fmt.Errorf("hybrid strategy requires an embedder")
		}
		return NewHybridRetriever(lexical, NewVectorRetriever(opts.Embedder), opts.RRFK, opts.LexicalWeight), nil
	default:
		return nil, fmt.Errorf("unsupported retrieval strategy: %s", opts.Strategy)
	}
}
