package contextmgr

import (
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates prompt sizes. Claude and Gemini tokenize similarly
// enough to GPT-4 for budgeting purposes, so one codec covers all backends.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter with GPT-4 encoding.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// CountTokens returns the number of tokens in text, falling back to a
// character-based estimate (4 chars per token) when the codec is unavailable.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}
