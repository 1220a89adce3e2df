package apperror

import "errors"

// Outcome tells a caller whether a failed operation may have taken effect.
type Outcome int

const (
	// OutcomeNothingHappened means no remote effect occurred; retrying is safe.
	OutcomeNothingHappened Outcome = iota
	// OutcomeUnresolved means the effect may still land; do not retry blindly.
	OutcomeUnresolved
	// OutcomeFailed means the operation ran and failed; retry with new parameters.
	OutcomeFailed
)

// String returns the outcome label used in logs and the UI.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnresolved:
		return "unresolved"
	case OutcomeFailed:
		return "failed"
	default:
		return "nothing_happened"
	}
}

func outcomeFor(code Code) Outcome {
	switch code {
	case CodeConfirmationTimeout, CodeSubmitUnresolved:
		return OutcomeUnresolved
	case CodeRemoteFailed:
		return OutcomeFailed
	default:
		return OutcomeNothingHappened
	}
}

// Classify returns the outcome for any error. Non-application errors are
// treated as unresolved since nothing is known about their effect.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeNothingHappened
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Outcome()
	}
	return OutcomeUnresolved
}
