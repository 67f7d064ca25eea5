package diagnosis

import (
	"errors"
	"fmt"
)

// Kind classifies dispatcher failures.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindInput
	KindPrediction
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInput:
		return "input"
	case KindPrediction:
		return "prediction"
	default:
		return "unknown"
	}
}

// Error is returned by the dispatcher for every failed submission.
type Error struct {
	Kind    Kind
	Disease string
	// Field is the key of the offending input, if any.
	Field string
	// Type is the model-side error type for prediction failures.
	Type    string
	Message string
	// Hint is the form's advice appended to input and prediction messages.
	Hint string
	Err  error
}

func (e *Error) Error() string {
	if e.Disease == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error [%s]: %s", e.Kind, e.Disease, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage renders the error for a notification.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInput:
		if e.Hint != "" {
			return fmt.Sprintf("Input Error: Enter valid numbers only (%s). Details: %s", e.Hint, e.Message)
		}
		return "Input Error: Enter valid numbers only. Details: " + e.Message
	case KindConfiguration:
		return "Configuration Error: " + e.Message
	case KindPrediction:
		msg := fmt.Sprintf("Prediction Error: %s - %s", e.Type, e.Message)
		if e.Hint != "" {
			msg += ". " + e.Hint
		}
		return msg
	default:
		return e.Message
	}
}

// KindOf returns the kind of err, or 0 if err is not a dispatcher error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }
func IsInput(err error) bool         { return KindOf(err) == KindInput }
func IsPrediction(err error) bool    { return KindOf(err) == KindPrediction }
