package events

const KindTurnStateChanged Kind = "turn_state.changed"

// TurnStateChanged reports a transition between assistant states. States are
// carried by name ("idle", "speaking").
type TurnStateChanged struct {
	Base
	From string
	To   string
}

func NewTurnStateChanged(from, to string) TurnStateChanged {
	return TurnStateChanged{Base: NewBase(KindTurnStateChanged), From: from, To: to}
}
