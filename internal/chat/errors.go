package chat

import "errors"

var (
	ErrNotEligible = errors.New("not allowed to start this conversation")
)
