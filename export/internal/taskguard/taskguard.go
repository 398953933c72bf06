// Package taskguard isolates region export tasks from each other: a panic
// inside one task is converted into an error so that a single misbehaving
// region cannot take down the worker pool it shares with its siblings.
package taskguard

import "fmt"

// Run runs fn, converting a panic into an error. Errors returned by fn pass
// through unchanged.
func Run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Value runs fn, returning its value and an error if fn panicked.
func Value[T any](fn func() T) (value T, err error) {
	err = Run(func() error {
		value = fn()
		return nil
	})
	return value, err
}
