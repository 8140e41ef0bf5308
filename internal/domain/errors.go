package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrMismatch      = fmt.Errorf("%w: mismatch", ErrValidation)
	ErrInvalidState  = errors.New("invalid state")
	ErrNotFound      = errors.New("not found")
	ErrTransientIO   = errors.New("transient io error")
)
