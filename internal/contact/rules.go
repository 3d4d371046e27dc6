package contact

import (
	"regexp"
	"strings"
)

// Rule rejects a trimmed message with Reason when Match returns true.
type Rule struct {
	Reason string
	Match  func(text string) bool
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// LinkLimit matches text containing more than max URL-like substrings.
func LinkLimit(max int) Rule {
	return Rule{
		Reason: ReasonTooManyLinks,
		Match: func(text string) bool {
			return len(urlPattern.FindAllStringIndex(text, max+1)) > max
		},
	}
}

// Denylist matches text containing any of words, ignoring case. Words match as
// plain substrings.
func Denylist(words ...string) Rule {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lowered = append(lowered, w)
		}
	}
	return Rule{
		Reason: ReasonContentRejected,
		Match: func(text string) bool {
			lower := strings.ToLower(text)
			for _, w := range lowered {
				if strings.Contains(lower, w) {
					return true
				}
			}
			return false
		},
	}
}

// DefaultRules returns the content checks applied after the length checks.
func DefaultRules() []Rule {
	return []Rule{
		LinkLimit(3),
		Denylist("sex", "porn"),
	}
}
