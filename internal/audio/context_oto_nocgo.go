//go:build nocgo
// +build nocgo

package audio

import "errors"

// NewOtoContext is unavailable without cgo; callers fall back to the mock.
func NewOtoContext(int) (Context, error) {
	return nil, errors.New("audio device support requires cgo")
}
