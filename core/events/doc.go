// Package events defines the typed events reported by the voice controller.
//
// Event kinds are grouped by namespace:
//
//   - utterance.*: a finalized user utterance was received or ignored.
//   - safety.*: the safety gate refused an utterance.
//   - generation.*: text generation for a turn finished.
//   - speech.*: the lifecycle of a single speech task.
//   - turn_state.*: the assistant moved between idle and speaking.
//   - recognition.*: the recognizer reported something other than a
//     finalized utterance.
//
// Events are plain values. Handlers receive them synchronously and must not
// call back into the component that emitted them.
package events
