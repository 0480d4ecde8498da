package wizard

import "errors"

var (
	// ErrValidationBlocked means a required field is unset; the matching
	// action should be disabled rather than reported to the user.
	ErrValidationBlocked = errors.New("action blocked: required selection missing")
	ErrWrongStep         = errors.New("action not available on the current step")
	ErrChangePending     = errors.New("a change is waiting for confirmation")
	ErrNoPendingChange   = errors.New("no change is waiting for confirmation")
	ErrSubmitting        = errors.New("order submission in progress")
	ErrMenuMismatch      = errors.New("menu does not belong to the selected restaurant")
	ErrUnknownOption     = errors.New("unknown option")
	ErrUnknownLine       = errors.New("unknown cart line")
)
