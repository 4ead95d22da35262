// Package editor computes folds by driving a headless vim.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/foldgen/pkg/config"
	"github.com/denysvitali/foldgen/pkg/folding"
)

// ErrTimeout is returned when vim does not finish within the configured timeout.
var ErrTimeout = errors.New("vim timed out")

// ErrClosed is returned by Compute after Close.
var ErrClosed = errors.New("editor session closed")

// extractScript closes folds one level at a time and records every closed
// fold as "<start> <end> <level>". g:foldgen_out names the output file.
const extractScript = `set foldenable
set foldminlines=0
let s:last = line('$')
let s:max = 0
for s:l in range(1, s:last)
  let s:max = max([s:max, foldlevel(s:l)])
endfor
let s:out = []
for s:d in range(1, s:max)
  let &foldlevel = s:d - 1
  let s:l = 1
  while s:l <= s:last
    let s:start = foldclosed(s:l)
    if s:start != -1
      let s:end = foldclosedend(s:l)
      call add(s:out, s:start . ' ' . s:end . ' ' . s:d)
      let s:l = s:end + 1
    else
      let s:l += 1
    endif
  endwhile
endfor
call writefile(s:out, g:foldgen_out)
qall!
`

// Session owns a scratch directory and the extraction script for one batch
// of fold computations. The directory is created by the first Compute.
// It is not safe for concurrent use.
type Session struct {
	cfg     config.VimConfig
	logger  *logrus.Logger
	tracer  trace.Tracer
	dir     string
	script  string
	mu      sync.Mutex
	closed  bool
	counter int
}

// NewSession checks that vim can be found and returns an idle session.
// Close must be called to remove any scratch files it created.
func NewSession(cfg config.VimConfig, logger *logrus.Logger) (*Session, error) {
	if _, err := exec.LookPath(cfg.Path); err != nil {
		return nil, fmt.Errorf("vim executable %q not found: %w", cfg.Path, err)
	}

	return &Session{
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("foldgen"),
	}, nil
}

// prepare creates the scratch directory and extraction script once.
func (s *Session) prepare() error {
	if s.dir != "" {
		return nil
	}

	dir, err := os.MkdirTemp(s.cfg.ScratchDir, "foldgen-vim-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}

	script := filepath.Join(dir, "extract.vim")
	if err := os.WriteFile(script, []byte(extractScript), 0644); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to write extraction script: %w", err)
	}

	s.logger.Debugf("Editor session initialized in %s", dir)
	s.dir = dir
	s.script = script
	return nil
}

// Close removes the session's scratch directory.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.dir == "" {
		return nil
	}
	return os.RemoveAll(s.dir)
}

// Compute opens path in vim, applies the configured commands and returns the
// folds vim defines for it.
func (s *Session) Compute(ctx context.Context, path string) ([]folding.Fold, error) {
	ctx, span := s.tracer.Start(ctx, "vim_compute")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	// vim happily edits a new buffer for a missing file
	info, err := os.Stat(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", path)
	}

	if err := s.prepare(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.counter++
	outFile := filepath.Join(s.dir, fmt.Sprintf("folds-%d.txt", s.counter))
	defer os.Remove(outFile)

	execCtx := ctx
	if timeout := s.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, s.cfg.Path, s.args(path, outFile)...)
	cmd.Dir = s.dir
	cmd.Env = []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		fmt.Sprintf("HOME=%s", os.Getenv("HOME")),
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debugf("Running %s on %s", s.cfg.Path, path)
	err = cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		span.RecordError(ErrTimeout)
		return nil, fmt.Errorf("%s: %w after %s", path, ErrTimeout, s.cfg.Timeout())
	}
	if err != nil {
		span.RecordError(err)
		output := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
		return nil, fmt.Errorf("vim failed on %s: %w: %s", path, err, output)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vim produced no fold output for %s: %w", path, err)
	}

	folds, err := folding.Unmarshal(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse vim fold output for %s: %w", path, err)
	}
	folding.SortDocumentOrder(folds)

	span.SetAttributes(attribute.Int("fold_count", len(folds)))
	return folds, nil
}

func (s *Session) args(path, outFile string) []string {
	vimrc := "NONE"
	if s.cfg.Vimrc != "" {
		vimrc = s.cfg.Vimrc
	}
	args := []string{
		"-Es", "-N", "-n",
		"-i", "NONE",
		"-u", vimrc,
		"--cmd", "let g:foldgen_out = " + vimString(outFile),
	}
	for _, c := range s.cfg.Commands {
		args = append(args, "-c", c)
	}
	return append(args, "-S", s.script, "--", path)
}

// vimString quotes s as a single-quoted vim string literal.
func vimString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
