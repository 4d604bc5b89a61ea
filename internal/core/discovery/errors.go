package discovery

import "errors"

var (
	ErrNoCandidate     = errors.New("discovery: no candidate above threshold")
	ErrNoScene         = errors.New("discovery: scene not available")
	ErrUnknownStrategy = errors.New("discovery: unknown strategy")
)
