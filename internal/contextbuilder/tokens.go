package contextbuilder

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// NewTokenCounter returns a tiktoken counter for model, falling back to
// cl100k_base and finally to ApproxCounter when no encoding can be loaded
// (tiktoken fetches BPE ranks on first use).
func NewTokenCounter(model string) TokenCounter {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &tiktokenCounter{enc: enc}
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("Token encoding unavailable, using character estimate")
		return ApproxCounter{}
	}
	encodingCache[model] = enc
	return &tiktokenCounter{enc: enc}
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// ApproxCounter estimates one token per four characters.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// truncateToTokens returns the longest rune prefix of text that fits budget.
func truncateToTokens(c TokenCounter, text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if c.Count(text) <= budget {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.Count(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
