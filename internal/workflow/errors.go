package workflow

import (
	"errors"

	"github.com/maheshrc27/postify/internal/apperr"
)

var (
	ErrInvalidTransition    = errors.New("action not allowed in the current state")
	ErrBusy                 = errors.New("another request is still in progress")
	ErrStale                = errors.New("the request was superseded by a newer action")
	ErrPlatformNotConnected = errors.New("platform is not connected")
	ErrUnknownPlatform      = errors.New("unknown platform")
)

func conflict(err error) error {
	return apperr.Classify(apperr.KindConflict, err)
}

func unknownPlatform(name string) error {
	return &apperr.Error{Kind: apperr.KindValidation, Message: "unknown platform " + name, Err: ErrUnknownPlatform}
}
