// Package fixture writes and verifies fold-list test fixtures.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/foldgen/pkg/folding"
)

// Suffix is appended to a source path to name its fixture.
const Suffix = ".testdata"

// PathFor returns the fixture path for a source file.
func PathFor(source string) string {
	return source + Suffix
}

// Writer computes fold lists and persists them next to their sources.
type Writer struct {
	computer folding.Computer
	logger   *logrus.Logger
	tracer   trace.Tracer
}

// New creates a writer backed by computer.
func New(computer folding.Computer, logger *logrus.Logger) *Writer {
	return &Writer{
		computer: computer,
		logger:   logger,
		tracer:   otel.Tracer("foldgen"),
	}
}

// WriteAll writes one fixture per path, strictly in order. The first failure
// stops the run; fixtures written before it are left in place.
func (w *Writer) WriteAll(ctx context.Context, paths []string) error {
	_, err := w.WriteEach(ctx, paths)
	return err
}

// WriteEach is WriteAll, also returning the fixtures written before any failure.
func (w *Writer) WriteEach(ctx context.Context, paths []string) ([]string, error) {
	written := make([]string, 0, len(paths))
	for _, path := range paths {
		out, err := w.Write(ctx, path)
		if err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

// Write computes the folds of path and replaces its fixture.
func (w *Writer) Write(ctx context.Context, path string) (string, error) {
	ctx, span := w.tracer.Start(ctx, "write_fixture")
	defer span.End()

	out := PathFor(path)
	span.SetAttributes(
		attribute.String("path", path),
		attribute.String("fixture", out),
	)

	folds, err := w.computer.Compute(ctx, path)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to compute folds for %s: %w", path, err)
	}
	span.SetAttributes(attribute.Int("fold_count", len(folds)))

	if err := os.WriteFile(out, folding.Marshal(folds), 0644); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to write fixture %s: %w", out, err)
	}

	w.logger.Infof("Wrote %s (%d folds)", out, len(folds))
	return out, nil
}

// Mismatch describes a fixture that no longer matches its source.
type Mismatch struct {
	Path    string
	Fixture string
	Missing bool
	Diff    []string
}

// Check recomputes folds for each path and compares them with the stored
// fixtures. Compute and decode failures stop the run like in WriteAll.
func (w *Writer) Check(ctx context.Context, paths []string) ([]Mismatch, error) {
	var mismatches []Mismatch
	for _, path := range paths {
		m, err := w.check(ctx, path)
		if err != nil {
			return mismatches, err
		}
		if m != nil {
			mismatches = append(mismatches, *m)
		}
	}
	return mismatches, nil
}

func (w *Writer) check(ctx context.Context, path string) (*Mismatch, error) {
	ctx, span := w.tracer.Start(ctx, "check_fixture")
	defer span.End()

	out := PathFor(path)
	span.SetAttributes(attribute.String("path", path))

	got, err := w.computer.Compute(ctx, path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to compute folds for %s: %w", path, err)
	}

	data, err := os.ReadFile(out)
	if errors.Is(err, os.ErrNotExist) {
		w.logger.Warnf("Fixture %s does not exist", out)
		return &Mismatch{Path: path, Fixture: out, Missing: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read fixture %s: %w", out, err)
	}

	want, err := folding.Unmarshal(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode fixture %s: %w", out, err)
	}

	diff := folding.Diff(want, got)
	span.SetAttributes(attribute.Bool("match", len(diff) == 0))
	if len(diff) == 0 {
		w.logger.Debugf("Fixture %s is up to date", out)
		return nil, nil
	}
	w.logger.Warnf("Fixture %s is stale", out)
	return &Mismatch{Path: path, Fixture: out, Diff: diff}, nil
}
