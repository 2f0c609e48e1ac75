package lifecycle

import "errors"

var (
	ErrListCandidates = errors.New("failed to list lifecycle candidates")
	ErrUnknownEvent   = errors.New("unsupported gateway event")
)
