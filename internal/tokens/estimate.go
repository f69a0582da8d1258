package tokens

import "strings"

type ModelFamily string

const (
	FamilyClaude ModelFamily = "claude"
	FamilyGemini ModelFamily = "gemini"
	FamilyGPT    ModelFamily = "gpt"
)

// FamilyOf maps a model id such as "claude-sonnet-4-5" to its tokenizer family.
func FamilyOf(model string) ModelFamily {
	switch {
	case strings.HasPrefix(model, "gemini"):
		return FamilyGemini
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return FamilyGPT
	default:
		return FamilyClaude
	}
}

// Estimate uses character-based estimation, which holds up better than word
// counts for mixed code/text content.
func Estimate(text string, family ModelFamily) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text)) / charsPerTokenRatio(family))
	if n == 0 {
		return 1
	}
	return n
}

func charsPerTokenRatio(family ModelFamily) float64 {
	switch family {
	case FamilyGemini:
		return 3.8
	default:
		return 3.5
	}
}
