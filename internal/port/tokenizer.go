package port

type Tokenizer interface {
	Tokenize(text string) []string

	CountOccurrences(text, term string) int
}
