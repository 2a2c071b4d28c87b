package lsp

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/harry-hov/tcpls/internal/tools"
)

type ErrorInfo struct {
	FileName string
	Line     int
	Column   int
	Span     []int
	Msg      string
	Tool     string
}

// Check reports the syntax errors of an open Go document.
func (s *Processor) Check(doc *Document) ([]ErrorInfo, error) {
	out := tools.Check(filepath.Base(doc.URI.Filename()), string(doc.Src))
	if len(out) == 0 {
		return nil, nil
	}
	return parseErrors(doc, string(out), "parse")
}

// errorRe matches one "file:line:col: msg" line of checker output.
var errorRe = regexp.MustCompile(`(?m)^([^#]+?):(\d+):(\d+):(.+)$`)

// parseErrors parses checker output, which looks like this:
//
// ```
// main.go:4:13: expected operand, found '}'
// main.go:7:1: expected declaration, found ')'
// ```
func parseErrors(doc *Document, output, tool string) ([]ErrorInfo, error) {
	errors := []ErrorInfo{}

	matches := errorRe.FindAllStringSubmatch(output, -1)
	for _, match := range matches {
		line, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, err
		}
		column, err := strconv.Atoi(match[3])
		if err != nil {
			return nil, err
		}
		slog.Debug("parsing", "line", line, "column", column, "msg", match[4])

		errors = append(errors, findError(doc, match[1], line, column, match[4], tool))
	}

	return errors, nil
}

// findError widens the reported column to the offending token when it can
// be found on the reported line.
func findError(doc *Document, fname string, line, col int, msg string, tool string) ErrorInfo {
	msg = strings.TrimSpace(msg)

	// Messages look like "expected operand, found '}'". The quoted token is
	// the one to highlight.
	needle := msg
	if i := strings.LastIndex(msg, "found "); i >= 0 {
		needle = strings.Trim(msg[i+len("found "):], "'")
	}

	errorInfo := ErrorInfo{
		FileName: filepath.Base(fname),
		Line:     line,
		Column:   col,
		Span:     []int{col, col + 1},
		Msg:      msg,
		Tool:     tool,
	}

	lines := strings.SplitAfter(string(doc.Src), "\n")
	if line < 1 || line > len(lines) || needle == "" {
		return errorInfo
	}
	l := lines[line-1]
	if col-1 > len(l) {
		return errorInfo
	}
	tokRe := regexp.MustCompile(fmt.Sprintf(`^\s*%s`, regexp.QuoteMeta(needle)))
	if loc := tokRe.FindStringIndex(l[col-1:]); loc != nil {
		errorInfo.Span = []int{col, col + loc[1]}
	}

	return errorInfo
}
