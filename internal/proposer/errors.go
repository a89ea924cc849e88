package proposer

import "errors"

// ErrEmptyResponse is returned when the proposer backend returns no
// completion choices.
var ErrEmptyResponse = errors.New("proposer: empty response")
