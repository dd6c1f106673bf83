package domain

import "errors"

// ErrOrderNotFound reports a removal for a hold id with no resting
// order. Callers log and continue: revocations race with matches.
var ErrOrderNotFound = errors.New("order_not_found")

// BadInputError represents unparseable user-supplied input (a figurine
// reference or a price). These are always recoverable: the deposited
// asset is returned to its sender and no state mutation occurs.
type BadInputError struct {
	Message string
}

func (e *BadInputError) Error() string {
	return e.Message
}
