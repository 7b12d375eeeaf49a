package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMessage        = errors.New("invalid message")
	ErrInvalidClassification = errors.New("invalid classification")
	ErrSourceUnavailable     = errors.New("mail source not configured")
)

func invalidMessage(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}

func invalidClassification(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidClassification, fmt.Sprintf(format, args...))
}
