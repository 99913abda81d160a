package orchestration

import "strings"

// DefaultStopCommands are the phrases that interrupt the assistant while it
// is speaking.
var DefaultStopCommands = []string{"stop", "pause", "shut up"}

// CommandSet matches control phrases anywhere in an utterance, ignoring case.
type CommandSet struct {
	phrases []string
}

func NewCommandSet(phrases ...string) CommandSet {
	set := CommandSet{phrases: make([]string, 0, len(phrases))}
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			set.phrases = append(set.phrases, phrase)
		}
	}
	return set
}

// Matches reports the first phrase contained in text.
func (s CommandSet) Matches(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, phrase := range s.phrases {
		if strings.Contains(lowered, phrase) {
			return phrase, true
		}
	}
	return "", false
}
