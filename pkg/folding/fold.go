// Package folding models code-fold ranges and the collaborators that compute them.
package folding

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownBackend is returned when no fold computer matches a configured backend name.
var ErrUnknownBackend = errors.New("unknown fold backend")

// Fold is one foldable region of a source file.
// Start and End are 1-based inclusive line numbers. Level is the nesting
// depth, 1 for an outermost fold; 0 means the computer had no nesting data.
type Fold struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Level int `json:"level"`
}

// String returns the fold in its on-disk record form.
func (f Fold) String() string {
	return fmt.Sprintf("%d %d %d", f.Start, f.End, f.Level)
}

// Computer produces the ordered fold list for the file at path.
type Computer interface {
	Compute(ctx context.Context, path string) ([]Fold, error)
}

// ComputerFunc adapts a plain function to the Computer interface.
type ComputerFunc func(ctx context.Context, path string) ([]Fold, error)

// Compute calls f(ctx, path).
func (f ComputerFunc) Compute(ctx context.Context, path string) ([]Fold, error) {
	return f(ctx, path)
}

// SortDocumentOrder orders folds by ascending start line, outer folds first.
func SortDocumentOrder(folds []Fold) {
	sort.SliceStable(folds, func(i, j int) bool {
		if folds[i].Start != folds[j].Start {
			return folds[i].Start < folds[j].Start
		}
		return folds[i].End > folds[j].End
	})
}

// Diff reports the differences between two fold lists, order included.
// Records only in want are prefixed with "-", records only in got with "+".
// An empty result means the lists are identical.
func Diff(want, got []Fold) []string {
	var diff []string
	n := len(want)
	if len(got) > n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(got):
			diff = append(diff, "-"+want[i].String())
		case i >= len(want):
			diff = append(diff, "+"+got[i].String())
		case want[i] != got[i]:
			diff = append(diff, "-"+want[i].String(), "+"+got[i].String())
		}
	}
	return diff
}
