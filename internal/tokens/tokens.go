// Package tokens accounts prompt and completion token usage.
//
// Two counting strategies exist, selected by provider class: a real subword
// tokenizer for OpenAI-style models, and a word-count heuristic for local
// models whose tokenizer is not available in-process.
package tokens

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used when the configured model has no registered
// tokenizer mapping.
const fallbackEncoding = "cl100k_base"

// wordsPerToken converts a whitespace word count into an approximate token
// count.
const wordsPerToken = 0.75

// Counter counts the tokens of a text. Empty text is always 0.
type Counter interface {
	Count(text string) int
}

// Usage is the token accounting for one completed exchange.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Pair is one question/answer exchange included in the prompt.
type Pair struct {
	Question string
	Answer   string
}

// Measure computes usage for an exchange. Prompt tokens are counted over
// the concatenation of all history pairs plus the current question;
// completion tokens over the answer alone. Total is exactly their sum.
func Measure(c Counter, history []Pair, question, answer string) Usage {
	var b strings.Builder
	for _, p := range history {
		b.WriteString(p.Question)
		b.WriteString(p.Answer)
	}
	b.WriteString(question)

	prompt := c.Count(b.String())
	completion := c.Count(answer)
	return Usage{
		Prompt:     prompt,
		Completion: completion,
		Total:      prompt + completion,
	}
}

// TiktokenCounter counts with the model's canonical subword tokenizer.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter resolves the tokenizer for the model name, falling
// back to the general-purpose cl100k_base encoding for unknown models.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("loading fallback encoding: %w", err)
		}
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// Count returns the length of the encoded token sequence.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// WordCounter approximates token counts as round(words / 0.75).
type WordCounter struct{}

// Count returns the approximate token count of text.
func (WordCounter) Count(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Round(float64(words) / wordsPerToken))
}
