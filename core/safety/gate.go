// Package safety decides whether a user utterance may be forwarded to text
// generation.
//
// Matching is case-insensitive substring matching against three phrase sets:
// blocked phrases always deny, sensitive phrases pass when an allowed-context
// phrase is present, and anything else passes. Sensitive phrases without
// context pass too unless the gate is built with [PolicyDefaultDeny].
package safety

import "strings"

// Policy decides the verdict for sensitive phrases that appear without any
// allowed-context phrase.
type Policy int

const (
	// PolicyDefaultAllow lets uncontextualized sensitive input through.
	PolicyDefaultAllow Policy = iota
	// PolicyDefaultDeny blocks uncontextualized sensitive input.
	PolicyDefaultDeny
)

type Category string

const (
	CategoryClear                     Category = "clear"
	CategoryBlocked                   Category = "blocked"
	CategorySensitiveInContext        Category = "sensitive_in_context"
	CategorySensitiveUncontextualized Category = "sensitive_uncontextualized"
)

// Verdict is the result of classifying a single utterance.
type Verdict struct {
	Allowed  bool
	Category Category
	// Phrase is the blocked or sensitive phrase that decided the verdict,
	// empty for clear input.
	Phrase string
}

// Phrases holds the phrase sets a Gate matches against.
type Phrases struct {
	Blocked        []string
	Sensitive      []string
	AllowedContext []string
}

// DefaultPhrases returns the built-in phrase sets.
func DefaultPhrases() Phrases {
	return Phrases{
		Blocked: []string{
			"how to kill", "how to murder", "i wanna attack", "i wanna have sex", "make a bomb", " how to abuse",
		},
		Sensitive: []string{
			"abuse", "violence", "suicide", "sex",
		},
		AllowedContext: []string{
			"help", "i need help", "support", "report", "someone tried", "i am scared", "explain", "what is ", "meaning of", "define",
		},
	}
}

type Option func(*Gate)

func WithPolicy(policy Policy) Option {
	return func(g *Gate) { g.policy = policy }
}

// Gate is a stateless classifier. It is safe for concurrent use.
type Gate struct {
	blocked        []string
	sensitive      []string
	allowedContext []string
	policy         Policy
}

func NewGate(phrases Phrases, opts ...Option) *Gate {
	gate := &Gate{
		blocked:        normalizePhrases(phrases.Blocked),
		sensitive:      normalizePhrases(phrases.Sensitive),
		allowedContext: normalizePhrases(phrases.AllowedContext),
		policy:         PolicyDefaultAllow,
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate
}

func (g *Gate) Classify(text string) Verdict {
	lowered := strings.ToLower(text)

	for _, phrase := range g.blocked {
		if strings.Contains(lowered, phrase) {
			return Verdict{Allowed: false, Category: CategoryBlocked, Phrase: phrase}
		}
	}

	uncontextualized := ""
	for _, phrase := range g.sensitive {
		if !strings.Contains(lowered, phrase) {
			continue
		}
		if g.hasAllowedContext(lowered) {
			return Verdict{Allowed: true, Category: CategorySensitiveInContext, Phrase: phrase}
		}
		if uncontextualized == "" {
			uncontextualized = phrase
		}
	}

	if uncontextualized != "" {
		return Verdict{
			Allowed:  g.policy == PolicyDefaultAllow,
			Category: CategorySensitiveUncontextualized,
			Phrase:   uncontextualized,
		}
	}

	return Verdict{Allowed: true, Category: CategoryClear}
}

func (g *Gate) hasAllowedContext(lowered string) bool {
	for _, phrase := range g.allowedContext {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// normalizePhrases lower-cases phrases and drops blank ones. Surrounding
// whitespace is kept because it is part of the match (" how to abuse").
func normalizePhrases(phrases []string) []string {
	normalized := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if strings.TrimSpace(phrase) == "" {
			continue
		}
		normalized = append(normalized, strings.ToLower(phrase))
	}
	return normalized
}
