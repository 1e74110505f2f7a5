package route

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIndexOutOfRange is returned by the segment editing functions when an
// index does not address a sibling.
var ErrIndexOutOfRange = errors.New("route: segment index out of range")

// Sibling matches of one level can be shown side by side as parallel
// panels. The functions below edit such a level and return the rebuilt
// path, relative to the level's base; the input slice is never modified.

// MoveSegment moves the segment at from to position to.
func MoveSegment(matches []Match, from, to int) (string, error) {
	segs, err := segments(matches, from)
	if err != nil {
		return "", err
	}
	if to < 0 || to >= len(segs) {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, to)
	}
	moved := segs[from]
	segs = append(segs[:from], segs[from+1:]...)
	segs = append(segs[:to], append([]string{moved}, segs[to:]...)...)
	return join(segs), nil
}

// OpenSegment inserts segment right after the sibling at index.
func OpenSegment(matches []Match, index int, segment string) (string, error) {
	segs, err := segments(matches, index)
	if err != nil {
		return "", err
	}
	segs = append(segs[:index+1], append([]string{segment}, segs[index+1:]...)...)
	return join(segs), nil
}

// CloseSegment removes the sibling at index.
func CloseSegment(matches []Match, index int) (string, error) {
	segs, err := segments(matches, index)
	if err != nil {
		return "", err
	}
	return join(append(segs[:index], segs[index+1:]...)), nil
}

// ReplaceSegment swaps the sibling at index for segment, as a navigation
// scoped to one panel does.
func ReplaceSegment(matches []Match, index int, segment string) (string, error) {
	segs, err := segments(matches, index)
	if err != nil {
		return "", err
	}
	segs[index] = segment
	return join(segs), nil
}

func segments(matches []Match, index int) ([]string, error) {
	if index < 0 || index >= len(matches) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	segs := make([]string, len(matches))
	for i, m := range matches {
		segs[i] = m.Segment
	}
	return segs, nil
}

func join(segs []string) string {
	return strings.Join(segs, "")
}
