package folding

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

var updateGolden = flag.Bool("update-golden", false, "If true, rewrites the expected fold lists in testdata/*.txtar")

const (
	goldenInput  = "input.py"
	goldenOutput = "input.py.testdata"
)

func TestPythonGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no txtar files in testdata")

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			runGolden(t, file)
		})
	}
}

func runGolden(t *testing.T, file string) {
	archive, err := txtar.ParseFile(file)
	require.NoError(t, err)

	var src, want []byte
	wantIndex := -1
	for i, f := range archive.Files {
		switch f.Name {
		case goldenInput:
			src = f.Data
		case goldenOutput:
			want = f.Data
			wantIndex = i
		}
	}
	require.NotNil(t, src, "%s has no %s section", file, goldenInput)

	p := Python{OnlyDefinitions: strings.Contains(string(archive.Comment), "only-definitions")}
	folds, err := p.Folds(src)
	require.NoError(t, err)
	got := Marshal(folds)

	if *updateGolden {
		if wantIndex < 0 {
			archive.Files = append(archive.Files, txtar.File{Name: goldenOutput})
			wantIndex = len(archive.Files) - 1
		}
		archive.Files[wantIndex].Data = got
		require.NoError(t, os.WriteFile(file, txtar.Format(archive), 0644))
		return
	}

	require.GreaterOrEqual(t, wantIndex, 0, "%s has no %s section; run with -update-golden", file, goldenOutput)
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Errorf("fold list mismatch (-want +got):\n%s", diff)
	}
}

func TestPythonSingleFunction(t *testing.T) {
	src := strings.Join([]string{
		"import sys",
		"",
		"def main():",
		"    a = 1",
		"    b = 2",
		"",
		"    c = a + b",
		"    # done",
		"    print(c)",
		"    return c",
		"",
		"",
	}, "\n")

	folds, err := Python{}.Folds([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, []Fold{{Start: 3, End: 10, Level: 1}}, folds)
}

func TestPythonCRLF(t *testing.T) {
	folds, err := Python{}.Folds([]byte("def f():\r\n    pass\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []Fold{{Start: 1, End: 2, Level: 1}}, folds)
}

func TestPythonLineEndingsAndBOM(t *testing.T) {
	for name, src := range map[string]string{
		"bom":     "\ufeffdef f():\n    pass\n",
		"cr only": "def f():\r    pass\r",
		"mixed":   "def f():\r\n    x = 1\r    pass\n",
	} {
		t.Run(name, func(t *testing.T) {
			folds, err := Python{}.Folds([]byte(src))
			require.NoError(t, err)
			want := Fold{Start: 1, End: 2, Level: 1}
			if name == "mixed" {
				want.End = 3
			}
			assert.Equal(t, []Fold{want}, folds)
		})
	}
}

func TestPythonOutdentedComment(t *testing.T) {
	src := "def f():\n    x = 1\n# not part of f\n    y = 2\n"

	folds, err := Python{}.Folds([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, []Fold{{Start: 1, End: 4, Level: 1}}, folds)
}

func TestPythonSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"unterminated triple quote", "x = 1\ns = '''\nabc\n", 2, "unterminated triple-quoted string literal"},
		{"unterminated string", "x = 'abc\ny = 2\n", 1, "unterminated string literal"},
		{"unmatched closer", "x = 1\ny = 2)\n", 2, "unmatched ')'"},
		{"mismatched closer", "x = (1]\n", 1, "closing parenthesis ']' does not match opening parenthesis '('"},
		{"never closed", "x = [\n  1,\n", 1, "'[' was never closed"},
		{"binary", "x = 1\ny\x00 = 2\n", 2, "source is not UTF-8 text"},
		{"invalid utf8", "x = '\xff'\n", 1, "source is not UTF-8 text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Python{}.Folds([]byte(tt.src))
			require.Error(t, err)

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr), "expected SyntaxError, got %T", err)
			assert.Equal(t, tt.line, syntaxErr.Line)
			assert.Equal(t, tt.msg, syntaxErr.Msg)
		})
	}
}

func TestPythonStringEscapes(t *testing.T) {
	src := "def f():\n    s = 'it\\'s (' + \"\\\"\" + '''a\\''''\n    return s\n"

	folds, err := Python{}.Folds([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, []Fold{{Start: 1, End: 3, Level: 1}}, folds)
}

func TestPythonCompute(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("class A:\n    x = 1\n"), 0644))

	folds, err := Python{}.Compute(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []Fold{{Start: 1, End: 2, Level: 1}}, folds)
}

func TestPythonComputeMissingFile(t *testing.T) {
	_, err := Python{}.Compute(context.Background(), filepath.Join(t.TempDir(), "missing.py"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPythonComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Python{}.Compute(ctx, "a.py")
	assert.ErrorIs(t, err, context.Canceled)
}
