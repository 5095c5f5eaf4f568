package tokenizer

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func promptCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// CountTokens returns the cl100k_base token count of a prompt. DALL-E 3 does
// not publish its prompt tokenizer, so the count is an approximation used for
// prompt-length metrics and logs. If the encoding cannot be loaded it falls
// back to character-based estimation.
func CountTokens(text string) int64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	enc, err := promptCodec()
	if err != nil {
		return estimateTokens(text)
	}

	ids, _, err := enc.Encode(text)
	if err != nil {
		return estimateTokens(text)
	}
	return int64(len(ids))
}

// estimateTokens uses character-based estimation (4 chars per token on average).
func estimateTokens(text string) int64 {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return 0
	}
	tokens := (len(text) + 3) / 4 // ceiling division by 4
	return int64(tokens)
}
