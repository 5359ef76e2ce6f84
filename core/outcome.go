package core

import "fmt"

// Outcome is the terminal value of one invocation. Concrete variants
// implement the unexported isOutcome marker enabling a closed set:
// Answer or *Failure.
type Outcome interface{ isOutcome() }

// Answer is a successful final answer.
type Answer struct {
	Text string
}

// isOutcome implements the Outcome interface for Answer.
func (Answer) isOutcome() {}

// FailureKind categorizes a failed invocation.
type FailureKind string

const (
	// FailureStepLimitExceeded signals the model never converged within the step bound.
	FailureStepLimitExceeded FailureKind = "step_limit_exceeded"
	// FailureTimeout signals the invocation deadline elapsed.
	FailureTimeout FailureKind = "timeout"
	// FailureProvider signals the model backend failed (see ProviderError).
	FailureProvider FailureKind = "provider_error"
	// FailureCanceled signals the caller cancelled the invocation.
	FailureCanceled FailureKind = "canceled"
)

// Failure is a failed outcome. It also implements error so request layers
// can hand it around with errors.As.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// isOutcome implements the Outcome interface for *Failure.
func (*Failure) isOutcome() {}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}

	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error { return f.Err }

// NewFailure constructs a Failure of the given kind.
func NewFailure(kind FailureKind, msg string, err error) *Failure {
	return &Failure{Kind: kind, Message: msg, Err: err}
}

// AnswerText returns the text of an Answer outcome and false for failures.
func AnswerText(o Outcome) (string, bool) {
	if a, ok := o.(Answer); ok {
		return a.Text, true
	}

	return "", false
}
