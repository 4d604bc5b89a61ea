package scene

import (
	"errors"
	"fmt"
)

var (
	ErrHostPanic = errors.New("scene: host call panicked")
	ErrNotChild  = errors.New("scene: node is not a child")
	ErrNilNode   = errors.New("scene: nil node")
	ErrCycle     = errors.New("scene: node is an ancestor")
	ErrNoHandle  = errors.New("scene: no scene handle")
	ErrDisposed  = errors.New("scene: object disposed")
)

// Safe runs a host call, converting a panic into an ErrHostPanic error.
func Safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHostPanic, r)
		}
	}()
	return fn()
}
