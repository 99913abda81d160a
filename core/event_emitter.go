package orchestration

import "github.com/koscakluka/ema-voice/core/events"

// EventHandler receives events synchronously. Transition events are delivered
// while the assistant-state lock is held, so handlers must return quickly and
// must not call back into the component that emitted the event.
type EventHandler func(events.Event)

func noopEventHandler(events.Event) {}
