package folding

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DecodeError describes a malformed record in an encoded fold list.
type DecodeError struct {
	Line int
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fold list line %d: %s", e.Line, e.Msg)
}

// Marshal encodes folds one record per line as "<start> <end> <level>\n".
// An empty list encodes to no bytes.
func Marshal(folds []Fold) []byte {
	var buf bytes.Buffer
	for _, f := range folds {
		buf.WriteString(strconv.Itoa(f.Start))
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(f.End))
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(f.Level))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Unmarshal decodes data produced by Marshal.
func Unmarshal(data []byte) ([]Fold, error) {
	if len(data) == 0 {
		return nil, nil
	}
	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		return nil, &DecodeError{Line: strings.Count(text, "\n") + 1, Msg: "missing trailing newline"}
	}

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	folds := make([]Fold, 0, len(lines))
	for i, line := range lines {
		fields := strings.Split(line, " ")
		if len(fields) != 3 {
			return nil, &DecodeError{Line: i + 1, Msg: fmt.Sprintf("want 3 fields, got %d", len(fields))}
		}
		var vals [3]int
		for j, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil || strconv.Itoa(v) != field {
				return nil, &DecodeError{Line: i + 1, Msg: fmt.Sprintf("invalid integer %q", field)}
			}
			vals[j] = v
		}
		folds = append(folds, Fold{Start: vals[0], End: vals[1], Level: vals[2]})
	}
	return folds, nil
}
