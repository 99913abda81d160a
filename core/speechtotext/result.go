package speechtotext

import "time"

type ResultKind int

const (
	// ResultPartial is an interim hypothesis that may still change.
	ResultPartial ResultKind = iota
	// ResultFinalized is the terminal transcript of one utterance.
	ResultFinalized
	// ResultNoMatch means speech was detected but nothing was recognized.
	ResultNoMatch
	// ResultCanceled means the recognition session ended.
	ResultCanceled
)

func (k ResultKind) String() string {
	switch k {
	case ResultPartial:
		return "partial"
	case ResultFinalized:
		return "finalized"
	case ResultNoMatch:
		return "no_match"
	case ResultCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type CancellationReason string

const (
	CancellationReasonError       CancellationReason = "Error"
	CancellationReasonEndOfStream CancellationReason = "EndOfStream"
)

// Result is a single report from a recognizer session. Reason and ErrorDetail
// are only meaningful for ResultCanceled; ErrorDetail only when Reason is
// CancellationReasonError.
type Result struct {
	Kind        ResultKind
	Text        string
	Reason      CancellationReason
	ErrorDetail string
	ReceivedAt  time.Time
}

func Partial(text string) Result {
	return Result{Kind: ResultPartial, Text: text, ReceivedAt: time.Now()}
}

func Finalized(text string) Result {
	return Result{Kind: ResultFinalized, Text: text, ReceivedAt: time.Now()}
}

func NoMatch() Result {
	return Result{Kind: ResultNoMatch, ReceivedAt: time.Now()}
}

func Canceled(reason CancellationReason, detail string) Result {
	result := Result{Kind: ResultCanceled, Reason: reason, ReceivedAt: time.Now()}
	if reason == CancellationReasonError {
		result.ErrorDetail = detail
	}
	return result
}
