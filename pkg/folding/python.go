package folding

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError reports source the Python folder cannot tokenize.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var blockKeywords = map[string]bool{
	"def":     true,
	"class":   true,
	"async":   true,
	"if":      true,
	"elif":    true,
	"else":    true,
	"for":     true,
	"while":   true,
	"with":    true,
	"try":     true,
	"except":  true,
	"finally": true,
	"match":   true,
	"case":    true,
}

// Python computes folds for Python source from its block structure.
// Every compound statement whose body starts on a later line becomes a fold;
// with OnlyDefinitions set, only def and class statements do.
type Python struct {
	OnlyDefinitions bool
}

// Compute reads path and returns its folds in document order.
func (p Python) Compute(ctx context.Context, path string) ([]Fold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	folds, err := p.Folds(src)
	if err != nil {
		return nil, fmt.Errorf("failed to fold %s: %w", path, err)
	}
	return folds, nil
}

type block struct {
	indent int
	start  int
	end    int
	level  int
}

// Folds computes the folds of src.
func (p Python) Folds(src []byte) ([]Fold, error) {
	lines, err := splitLogical(src)
	if err != nil {
		return nil, err
	}

	var (
		stack          []block
		folds          []Fold
		decoratorStart int
	)
	closeBlocks := func(indent int) {
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if b.end > b.start {
				folds = append(folds, Fold{Start: b.start, End: b.end, Level: b.level})
			}
		}
	}

	for _, ln := range lines {
		if ln.code == "" {
			if ln.comment {
				for i := range stack {
					if stack[i].indent < ln.indent {
						stack[i].end = ln.last
					}
				}
			}
			continue
		}

		closeBlocks(ln.indent)
		for i := range stack {
			stack[i].end = ln.last
		}

		if strings.HasPrefix(ln.code, "@") {
			if decoratorStart == 0 {
				decoratorStart = ln.first
			}
			continue
		}

		words := leadingWords(ln.code)
		start := ln.first
		if decoratorStart != 0 {
			if isDefinition(words) {
				start = decoratorStart
			}
			decoratorStart = 0
		}

		if p.isHeader(words, ln.code) {
			stack = append(stack, block{
				indent: ln.indent,
				start:  start,
				end:    ln.last,
				level:  len(stack) + 1,
			})
		}
	}
	closeBlocks(-1)

	SortDocumentOrder(folds)
	return folds, nil
}

func (p Python) isHeader(words []string, code string) bool {
	if len(words) == 0 || !strings.HasSuffix(code, ":") {
		return false
	}
	if p.OnlyDefinitions {
		return isDefinition(words)
	}
	return blockKeywords[words[0]]
}

func isDefinition(words []string) bool {
	if len(words) == 0 {
		return false
	}
	switch words[0] {
	case "def", "class":
		return true
	case "async":
		return len(words) > 1 && words[1] == "def"
	}
	return false
}

// leadingWords splits code into identifier words when it starts with one.
func leadingWords(code string) []string {
	r, _ := utf8.DecodeRuneInString(code)
	if !unicode.IsLetter(r) && r != '_' {
		return nil
	}
	return strings.FieldsFunc(code, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// logicalLine is one Python statement line after joining continuations.
type logicalLine struct {
	first   int
	last    int
	indent  int
	code    string // strings collapsed to "", comments dropped
	comment bool   // comment-only line
}

type openBracket struct {
	ch   byte
	line int
}

var closerFor = map[byte]byte{'(': ')', '[': ']', '{': '}'}

func splitLogical(src []byte) ([]logicalLine, error) {
	if off := invalidTextOffset(src); off >= 0 {
		return nil, &SyntaxError{Line: bytes.Count(src[:off], []byte("\n")) + 1, Msg: "source is not UTF-8 text"}
	}

	text := strings.TrimPrefix(string(src), "\ufeff")
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	physical := strings.Split(text, "\n")
	if physical[len(physical)-1] == "" {
		physical = physical[:len(physical)-1]
	}

	var (
		lines      []logicalLine
		cur        *logicalLine
		code       strings.Builder
		brackets   []openBracket
		quote      string
		quoteLine  int
		sawComment bool
	)

	for i, phys := range physical {
		lineNo := i + 1
		if cur == nil {
			cur = &logicalLine{first: lineNo, indent: indentWidth(phys)}
			code.Reset()
			sawComment = false
		}
		cur.last = lineNo

		continued := false
		stringContinued := false
		for j := 0; j < len(phys); j++ {
			c := phys[j]
			if quote != "" {
				if c == '\\' {
					if j == len(phys)-1 {
						stringContinued = true
					}
					j++
					continue
				}
				if strings.HasPrefix(phys[j:], quote) {
					j += len(quote) - 1
					quote = ""
				}
				continue
			}

			switch c {
			case '#':
				sawComment = true
				j = len(phys)
			case '\'', '"':
				quote = string(c)
				if strings.HasPrefix(phys[j:], strings.Repeat(quote, 3)) {
					quote = strings.Repeat(quote, 3)
				}
				quoteLine = lineNo
				code.WriteString(`""`)
				j += len(quote) - 1
			case '(', '[', '{':
				brackets = append(brackets, openBracket{ch: c, line: lineNo})
				code.WriteByte(c)
			case ')', ']', '}':
				if len(brackets) == 0 {
					return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("unmatched '%c'", c)}
				}
				open := brackets[len(brackets)-1]
				if closerFor[open.ch] != c {
					return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("closing parenthesis '%c' does not match opening parenthesis '%c'", c, open.ch)}
				}
				brackets = brackets[:len(brackets)-1]
				code.WriteByte(c)
			case '\\':
				if j == len(phys)-1 {
					continued = true
				} else {
					code.WriteByte(c)
				}
			default:
				code.WriteByte(c)
			}
		}

		if len(quote) == 1 && !stringContinued {
			return nil, &SyntaxError{Line: quoteLine, Msg: "unterminated string literal"}
		}
		if quote != "" || len(brackets) > 0 || continued {
			code.WriteByte(' ')
			continue
		}

		cur.code = strings.TrimSpace(code.String())
		cur.comment = cur.code == "" && sawComment
		lines = append(lines, *cur)
		cur = nil
	}

	if quote != "" {
		return nil, &SyntaxError{Line: quoteLine, Msg: "unterminated triple-quoted string literal"}
	}
	if len(brackets) > 0 {
		return nil, &SyntaxError{Line: brackets[0].line, Msg: fmt.Sprintf("'%c' was never closed", brackets[0].ch)}
	}
	if cur != nil {
		cur.code = strings.TrimSpace(code.String())
		lines = append(lines, *cur)
	}
	return lines, nil
}

// indentWidth measures leading whitespace with tab stops every 8 columns.
func indentWidth(line string) int {
	col := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			col++
		case '\t':
			col = (col/8 + 1) * 8
		case '\f':
			col = 0
		default:
			return col
		}
	}
	return col
}

// invalidTextOffset returns the offset of the first NUL byte or invalid
// UTF-8 sequence in src, or -1 when src is text.
func invalidTextOffset(src []byte) int {
	for off := 0; off < len(src); {
		r, size := utf8.DecodeRune(src[off:])
		if r == 0 || (r == utf8.RuneError && size == 1) {
			return off
		}
		off += size
	}
	return -1
}
