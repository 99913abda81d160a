package events

const (
	KindUtteranceReceived Kind = "utterance.received"
	KindUtteranceIgnored  Kind = "utterance.ignored"
)

// UtteranceReceived reports a finalized utterance handed to the controller.
type UtteranceReceived struct {
	Base
	UtteranceID string
	Text        string
}

func NewUtteranceReceived(id, text string) UtteranceReceived {
	return UtteranceReceived{Base: NewBase(KindUtteranceReceived), UtteranceID: id, Text: text}
}

// UtteranceIgnored reports an utterance the controller dropped, with the
// reason it was dropped.
type UtteranceIgnored struct {
	Base
	UtteranceID string
	Text        string
	Reason      string
}

func NewUtteranceIgnored(id, text, reason string) UtteranceIgnored {
	return UtteranceIgnored{Base: NewBase(KindUtteranceIgnored), UtteranceID: id, Text: text, Reason: reason}
}
