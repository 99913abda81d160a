package events

const KindSafetyBlocked Kind = "safety.blocked"

// SafetyBlocked reports an utterance refused by the safety gate.
type SafetyBlocked struct {
	Base
	UtteranceID string
	Category    string
	Phrase      string
}

func NewSafetyBlocked(id, category, phrase string) SafetyBlocked {
	return SafetyBlocked{Base: NewBase(KindSafetyBlocked), UtteranceID: id, Category: category, Phrase: phrase}
}
