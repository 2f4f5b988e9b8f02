package agent

import (
	"github.com/pkoukk/tiktoken-go"
)

type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter approximates prompt size with an OpenAI BPE encoding. Local models tokenize
// differently, so the count is only used for logging.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the encoding used by model, e.g. "gpt-4o-mini". Unknown models fall back to
// cl100k_base.
func NewTokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
