package types

import "errors"

// ErrUnknownOutcomeLevel is returned when an outcome level string does not
// match one of the four defined levels.
var ErrUnknownOutcomeLevel = errors.New("types: unknown outcome level")
