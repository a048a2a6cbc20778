package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidInput marks caller mistakes; the message is safe to show.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoFace is returned when an image that must carry a face does not.
	ErrNoFace = errors.New("no usable face detected")
	// ErrEncoder marks failures of the external face encoder.
	ErrEncoder = errors.New("face encoder unavailable")
	// ErrUnauthorized is returned for bad credentials.
	ErrUnauthorized = errors.New("invalid credentials")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// validationError flattens validator output into one readable ErrInvalidInput.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidf("%v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return invalidf("%s", strings.Join(msgs, ", "))
}
