package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrNameTaken           = fmt.Errorf("participant name already taken")
	ErrInvalidName         = fmt.Errorf("participant name is empty")
	ErrParticipantNotFound = fmt.Errorf("participant not found")
	ErrMessageNotFound     = fmt.Errorf("message not found")
	ErrForbidden           = fmt.Errorf("requester is not the author")
	ErrUnknownSender       = fmt.Errorf("sender is not in the room")
	ErrInvalidMessage      = fmt.Errorf("invalid message")
	ErrInvalidLimit        = fmt.Errorf("limit must be a positive integer")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
)

// Is forwards to the standard library so callers importing this package
// don't need a second errors import just for matching.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
