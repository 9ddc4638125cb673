package reason

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/sweetpotato0/askdata/pkg/logging"
)

// promptBudget bounds how much context text flows into a single prompt.
// Token counting uses tiktoken when the encoding is available and falls back
// to a characters-per-token estimate when it is not (the encoder is fetched
// lazily and may be unavailable offline).
type promptBudget struct {
	maxTokens int
	enc       *tiktoken.Tiktoken
}

const approxCharsPerToken = 4

func newPromptBudget(maxTokens int) *promptBudget {
	b := &promptBudget{maxTokens: maxTokens}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logging.WithComponent("reason").Warn("tiktoken encoding unavailable, using character estimate", "error", err)
	} else {
		b.enc = enc
	}
	return b
}

// truncate cuts text down to the budget, preserving a leading slice.
func (b *promptBudget) truncate(text string) string {
	if b.maxTokens <= 0 || text == "" {
		return text
	}
	if b.enc == nil {
		limit := b.maxTokens * approxCharsPerToken
		if len(text) <= limit {
			return text
		}
		runes := []rune(text)
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}

	ids := b.enc.Encode(text, nil, nil)
	if len(ids) <= b.maxTokens {
		return text
	}
	return b.enc.Decode(ids[:b.maxTokens])
}
